package workflow

import "time"

// Backoff enumerates retry delay shapes.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// DefaultMaxDelay bounds exponential growth so a retrying stage cannot stall
// the whole run.
const DefaultMaxDelay = 30 * time.Second

// RetryPolicy describes how a unit of work is retried. MaxAttempts counts
// retries after the first attempt; zero means a single attempt whose failure
// propagates immediately. Paid provider calls run with NoRetry so a failure
// surfaces to the caller instead of silently re-billing.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     Backoff
	MaxDelay    time.Duration
}

// NoRetry is the single-attempt policy.
var NoRetry = RetryPolicy{}

// FixedRetry returns a policy with a constant delay between attempts.
func FixedRetry(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: delay, Backoff: BackoffFixed}
}

// ExponentialRetry returns a policy whose delay doubles per attempt, capped at
// DefaultMaxDelay.
func ExponentialRetry(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Backoff:     BackoffExponential,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the wait before attempt n+1 given that 0-based attempt n just
// failed. The second return is false when attempts are exhausted.
func (p RetryPolicy) Delay(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	switch p.Backoff {
	case BackoffExponential:
		delay := p.BaseDelay
		for i := 0; i < attempt; i++ {
			delay *= 2
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				return p.MaxDelay, true
			}
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		return delay, true
	default:
		return p.BaseDelay, true
	}
}
