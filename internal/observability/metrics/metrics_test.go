package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveConsumerLag(t *testing.T) {
	Init(nil, nil)

	ObserveConsumerLag("intake.synthesize", 2*time.Second)
	if got := testutil.ToFloat64(consumerLag.WithLabelValues("intake.synthesize")); got != 2 {
		t.Fatalf("lag gauge = %v, want 2", got)
	}

	// Clock skew can make the envelope timestamp sit in the future.
	ObserveConsumerLag("intake.synthesize", -time.Second)
	if got := testutil.ToFloat64(consumerLag.WithLabelValues("intake.synthesize")); got != 0 {
		t.Fatalf("negative lag not clamped, got %v", got)
	}

	ObserveConsumerLag("", 3*time.Second)
	if got := testutil.ToFloat64(consumerLag.WithLabelValues("unknown")); got != 3 {
		t.Fatalf("empty consumer not bucketed as unknown, got %v", got)
	}
}
