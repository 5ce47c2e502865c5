package pipeline

import (
	"context"
	"time"

	"github.com/datamunge/taxipipe/components"
	"github.com/datamunge/taxipipe/logger"
)

// RetryPolicy retries an operation a bounded number of times with a constant
// delay between attempts. Only transient errors are retried; anything else
// aborts immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, fails permanently, or the attempt budget is
// spent. It returns the number of attempts made and the last error seen.
func (p RetryPolicy) Do(ctx context.Context, log logger.Logger, name string, fn func() error) (attempts int, err error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempts = 1; ; attempts++ {
		err = fn()
		if err == nil {
			return attempts, nil
		}
		if !components.IsTransient(err) { // if the error cannot be fixed by retrying...
			return attempts, err
		}
		if attempts >= maxAttempts {
			log.Warn(name, " failed after ", attempts, " attempts: ", err)
			return attempts, err
		}
		log.Warn(name, " attempt ", attempts, " of ", maxAttempts, " failed, retrying in ", p.Backoff, ": ", err)
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
	}
}
