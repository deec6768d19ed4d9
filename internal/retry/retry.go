// Package retry provides the bounded-attempt policy used everywhere the
// agent waits on the network: a fixed number of attempts separated by a
// fixed pause. There are no wall-clock deadlines; the total wait is always
// Attempts × Pause.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Spec describes a bounded retry policy.
type Spec struct {
	Attempts uint64        // total attempts, including the first
	Pause    time.Duration // fixed pause between attempts
}

// Do runs op until it succeeds or the attempt budget is exhausted. The
// error of the last attempt is returned. Context cancellation stops the
// pauses early but never interrupts a running attempt.
func (s Spec) Do(ctx context.Context, op func() error) error {
	attempts := s.Attempts
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.Pause), attempts-1)
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// Total is the wall-clock upper bound of the policy.
func (s Spec) Total() time.Duration {
	return time.Duration(s.Attempts) * s.Pause
}
