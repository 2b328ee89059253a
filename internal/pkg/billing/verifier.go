package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier authenticates a raw webhook body against the credential the
// provider sent with it. Implementations must operate on the literal request
// bytes; HMAC signatures are computed over exactly what the provider signed,
// before any JSON parsing normalizes whitespace or field order.
type Verifier interface {
	Verify(rawBody []byte, credential string) bool
}

// HMACVerifier validates the card/UPI processor's hex-encoded HMAC-SHA256
// signature header. Bypass skips verification for local testing and must only
// ever be set from a non-production environment gate.
type HMACVerifier struct {
	Secret string
	Bypass bool
}

func (v HMACVerifier) Verify(rawBody []byte, credential string) bool {
	if v.Bypass {
		return true
	}

	sig := strings.TrimSpace(credential)
	secret := strings.TrimSpace(v.Secret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// BearerVerifier compares the shared secret carried in the aggregator's
// Authorization header. A missing configured secret fails closed: the endpoint
// refuses every event rather than accepting all of them.
type BearerVerifier struct {
	Secret string
}

func (v BearerVerifier) Verify(_ []byte, credential string) bool {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return false
	}

	token := strings.TrimSpace(credential)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return false
	}

	return hmac.Equal([]byte(token), []byte(secret))
}
