package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dramaforge/dramaforge-backend/pkg/config"
)

// ErrStillProcessing reports that a provider task stayed non-terminal
// through the entire polling budget. It is an outcome, not a failure:
// callers surface the task id so the result can be collected later.
var ErrStillProcessing = errors.New("task still processing after polling budget")

// CheckFunc fetches the current state of an asynchronous task. done is
// true once the state is terminal.
type CheckFunc[T any] func(ctx context.Context) (result T, done bool, err error)

// Poller drives bounded fixed-interval polling for asynchronous
// provider tasks.
type Poller struct {
	interval    time.Duration
	maxAttempts int
}

// NewPoller builds a poller from configuration.
func NewPoller(cfg config.PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 15
	}
	return &Poller{interval: interval, maxAttempts: maxAttempts}
}

// Await invokes check until it reports done, fails, or the attempt
// budget is spent. Exactly maxAttempts calls are made in the worst
// case, with the configured interval slept between consecutive calls.
// A spent budget returns ErrStillProcessing along with the last result.
func Await[T any](ctx context.Context, p *Poller, check CheckFunc[T]) (T, int, error) {
	var (
		last     T
		attempts int
	)

	// retry counts retries, not calls: n retries is n+1 invocations.
	backoff := retry.WithMaxRetries(uint64(p.maxAttempts-1), retry.NewConstant(p.interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		result, done, err := check(ctx)
		if err != nil {
			return err
		}
		last = result
		if done {
			return nil
		}
		return retry.RetryableError(ErrStillProcessing)
	})
	if err != nil {
		if errors.Is(err, ErrStillProcessing) {
			return last, attempts, fmt.Errorf("%w (attempts=%d)", ErrStillProcessing, attempts)
		}
		return last, attempts, err
	}
	return last, attempts, nil
}
