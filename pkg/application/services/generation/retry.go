package generation

import (
	"context"
	"time"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// RetryPolicy re-runs an operation that failed with a transient gateway
// error. Every other error is returned at once.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// OnRetry is called before each retry with the attempt that failed
	OnRetry func(attempt int, err error)
}

// NoRetry runs the operation exactly once
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Do runs fn until it succeeds, fails permanently or attempts run out, waiting
// Backoff times the attempt number between tries. It returns the number of
// attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if !entities.IsTransient(err) || attempt >= attempts {
			return attempt, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}
