package counter

import "testing"

func TestFormatSnapshot(t *testing.T) {
	got := FormatSnapshot(map[string]int64{
		"revenuecat:processed": 12,
		"razorpay:processed":   40,
		"razorpay:rejected":    3,
	})
	want := "razorpay:processed=40 razorpay:rejected=3 revenuecat:processed=12"
	if got != want {
		t.Fatalf("FormatSnapshot = %q, want %q", got, want)
	}

	if got := FormatSnapshot(nil); got != "" {
		t.Fatalf("expected empty string for no counters, got %q", got)
	}
}
