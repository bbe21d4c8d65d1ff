package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryCompleter retries failed calls with exponential backoff.
type RetryCompleter struct {
	next       Completer
	maxRetries uint64
	log        *slog.Logger

	// newBackOff is replaced in tests.
	newBackOff func() backoff.BackOff
}

// NewRetryCompleter retries next up to maxRetries extra times.
func NewRetryCompleter(next Completer, maxRetries uint64, log *slog.Logger) *RetryCompleter {
	if log == nil {
		log = slog.Default()
	}
	return &RetryCompleter{
		next:       next,
		maxRetries: maxRetries,
		log:        log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(500*time.Millisecond),
				backoff.WithMaxInterval(10*time.Second),
			)
		},
	}
}

func (r *RetryCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	op := func() error {
		s, err := r.next.Complete(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		out = s
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		r.log.Warn("llm call failed, retrying", "error", err, "wait", wait)
	})
	return out, err
}
