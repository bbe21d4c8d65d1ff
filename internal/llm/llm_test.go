package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisqleval/internal/testutil"
)

func TestRetryCompleter(t *testing.T) {
	var calls atomic.Int32
	flaky := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("temporary")
		}
		return "ok:" + prompt, nil
	})

	r := NewRetryCompleter(flaky, 3, testutil.NewTestLogger(t))
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	out, err := r.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok:p", out)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	r.maxRetries = 1
	_, err = r.Complete(context.Background(), "p")
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryCompleter_StopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	c := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		cancel()
		return "", ctx.Err()
	})
	r := NewRetryCompleter(c, 5, nil)
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	_, err := r.Complete(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedCompleter(t *testing.T) {
	var calls atomic.Int32
	c := NewCachedCompleter(CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		if prompt == "fail" {
			return "", errors.New("boom")
		}
		return strings.ToUpper(prompt), nil
	}), time.Minute)
	defer c.Stop()

	for i := 0; i < 3; i++ {
		out, err := c.Complete(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, "ABC", out)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err := c.Complete(context.Background(), "fail")
	assert.Error(t, err)
	_, err = c.Complete(context.Background(), "fail")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "errors are not cached")
	assert.Equal(t, 1, c.Len())
}

func TestWithTimeout(t *testing.T) {
	slow := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	})
	_, err := WithTimeout(slow, 10*time.Millisecond).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMeteredCompleter(t *testing.T) {
	var got []Usage
	m := NewMeteredCompleter(CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "SELECT col0 FROM t", nil
	}), nil, func(u Usage) { got = append(got, u) })

	_, err := m.Complete(context.Background(), "How many cities are there?")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Greater(t, got[0].PromptTokens, 0)
	assert.Greater(t, got[0].CompletionTokens, 0)
	assert.NoError(t, got[0].Err)
}

func TestTokenCounter_Fallback(t *testing.T) {
	var c *TokenCounter
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("abcdefg"))
}

func TestLangchainCompleter_OpenAICompatible(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":"SELECT col0 FROM t;"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	}))
	defer srv.Close()

	c, stop, err := New(ModelConfig{Provider: ProviderOpenAI, ModelName: "test-model", Token: "test", BaseURL: srv.URL}, Options{})
	require.NoError(t, err)
	defer stop()

	out, err := c.Complete(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "SELECT col0 FROM t;", out)
	assert.Equal(t, "test-model", body["model"])
}

func TestAnthropicCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"SELECT COUNT(col0) FROM t;"}],
			"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":7}}`))
	}))
	defer srv.Close()

	c := NewAnthropicCompleter(ModelConfig{Provider: ProviderAnthropic, ModelName: "claude-test", Token: "test-key", BaseURL: srv.URL})
	out, err := c.Complete(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(col0) FROM t;", out)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, _, err := New(ModelConfig{Provider: "carrier-pigeon"}, Options{})
	assert.Error(t, err)
}
