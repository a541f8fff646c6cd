package reconcile

import (
	"errors"
	"time"

	"hubgraph/types"

	"github.com/eapache/go-resiliency/retrier"
)

// RetryPolicy controls whether SourceUnavailable failures are retried inside a tick.
// The zero value never retries: the first failure ends the job.
type RetryPolicy struct {
	// Attempts is the number of retries after the first failed fetch
	Attempts int
	// Backoff is the initial wait; it doubles on every retry
	Backoff time.Duration
}

// Enabled reports whether any retry will be attempted
func (p RetryPolicy) Enabled() bool {
	return p.Attempts > 0
}

// newRetrier builds a retrier for the policy, or nil when retries are disabled
func (p RetryPolicy) newRetrier() *retrier.Retrier {
	if !p.Enabled() {
		return nil
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	r := retrier.New(retrier.ExponentialBackoff(p.Attempts, backoff), unavailableClassifier{})
	r.SetJitter(0.2)
	return r
}

// unavailableClassifier retries transport failures only; protocol errors are final
type unavailableClassifier struct{}

func (unavailableClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errors.Is(err, types.ErrSourceUnavailable):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}
