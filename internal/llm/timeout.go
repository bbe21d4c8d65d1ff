package llm

import (
	"context"
	"time"
)

// WithTimeout bounds every call to next by d.
func WithTimeout(next Completer, d time.Duration) Completer {
	return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Complete(ctx, prompt)
	})
}
