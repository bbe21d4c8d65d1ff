package llm

import (
	"context"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts with the cl100k_base encoding. When the
// encoding cannot be loaded it falls back to four bytes per token.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

func (c *TokenCounter) Count(s string) int {
	if s == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		return (len(s) + 3) / 4
	}
	return len(c.enc.Encode(s, nil, nil))
}

// Usage describes one model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	Err              error
}

// Observer receives the usage of every call.
type Observer func(Usage)

// MeteredCompleter reports token usage and latency of each call.
type MeteredCompleter struct {
	next    Completer
	counter *TokenCounter
	observe Observer
}

func NewMeteredCompleter(next Completer, counter *TokenCounter, observe Observer) *MeteredCompleter {
	return &MeteredCompleter{next: next, counter: counter, observe: observe}
}

func (m *MeteredCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := m.next.Complete(ctx, prompt)
	m.observe(Usage{
		PromptTokens:     m.counter.Count(prompt),
		CompletionTokens: m.counter.Count(out),
		Duration:         time.Since(start),
		Err:              err,
	})
	return out, err
}
