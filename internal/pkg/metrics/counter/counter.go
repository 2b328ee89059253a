package counter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shravanlabs/shravan/internal/pkg/cache"
)

// Webhook processing outcomes tracked per provider.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

const webhookCountersKey = "webhook:counters"

// AddWebhookResult increments the counter for one processed webhook delivery.
// Best-effort: counting must never affect the webhook response.
func AddWebhookResult(provider, outcome string) error {
	field := fmt.Sprintf("%s:%s", provider, outcome)
	return cache.GetClient().HIncrBy(context.Background(), webhookCountersKey, field, 1).Err()
}

// Snapshot returns the current counters as "provider:outcome" -> count.
func Snapshot() (map[string]int64, error) {
	raw, err := cache.GetClient().HGetAll(context.Background(), webhookCountersKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		var count int64
		if _, err := fmt.Sscanf(value, "%d", &count); err != nil {
			continue
		}
		out[field] = count
	}
	return out, nil
}

// FormatSnapshot renders the counters sorted by field name, for the admin
// surface and log dumps.
func FormatSnapshot(counts map[string]int64) string {
	fields := make([]string, 0, len(counts))
	for field := range counts {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s=%d", field, counts[field]))
	}
	return strings.Join(parts, " ")
}
