package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retries of a transient-failure-prone call: at most
// Attempts total calls, exponential delay starting at Initial and
// doubling between attempts.
type Policy struct {
	Attempts  int
	Initial   time.Duration
	Transient func(error) bool
}

func DefaultPolicy(transient func(error) bool) Policy {
	return Policy{
		Attempts:  3,
		Initial:   500 * time.Millisecond,
		Transient: transient,
	}
}

// Do runs op under the policy. Errors the policy does not classify as
// transient stop retrying immediately and are returned as-is. The error
// of the final attempt is returned once attempts are exhausted.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Transient != nil && !p.Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
