package workflow

import (
	"testing"
	"time"
)

func TestNoRetryExhaustsImmediately(t *testing.T) {
	if _, retry := NoRetry.Delay(0); retry {
		t.Fatalf("NoRetry allowed a retry after the first attempt")
	}
}

func TestFixedRetryDelays(t *testing.T) {
	policy := FixedRetry(3, 250*time.Millisecond)
	for attempt := 0; attempt < 3; attempt++ {
		delay, retry := policy.Delay(attempt)
		if !retry {
			t.Fatalf("attempt %d: expected a retry", attempt)
		}
		if delay != 250*time.Millisecond {
			t.Fatalf("attempt %d: delay = %v, want 250ms", attempt, delay)
		}
	}
	if _, retry := policy.Delay(3); retry {
		t.Fatalf("expected retries to be exhausted after MaxAttempts failures")
	}
}

func TestExponentialRetryDoubles(t *testing.T) {
	policy := ExponentialRetry(4, 500*time.Millisecond)
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
	}
	for attempt, expected := range want {
		delay, retry := policy.Delay(attempt)
		if !retry {
			t.Fatalf("attempt %d: expected a retry", attempt)
		}
		if delay != expected {
			t.Fatalf("attempt %d: delay = %v, want %v", attempt, delay, expected)
		}
	}
}

func TestExponentialRetryCapsAtMaxDelay(t *testing.T) {
	policy := ExponentialRetry(20, time.Second)
	delay, retry := policy.Delay(10)
	if !retry {
		t.Fatalf("expected a retry within the attempt budget")
	}
	if delay != DefaultMaxDelay {
		t.Fatalf("delay = %v, want cap %v", delay, DefaultMaxDelay)
	}
}
