// Package llm wraps the language-model endpoints behind Completer and adds
// retry, caching, timeout and token accounting around them.
package llm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider selects the client implementation.
type Provider string

const (
	// ProviderOpenAI covers any OpenAI-compatible endpoint (DeepSeek, Qwen,
	// vLLM, ...).
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ModelConfig describes one model endpoint and the call policy around it.
type ModelConfig struct {
	Provider    Provider      `koanf:"provider"`
	ModelName   string        `koanf:"model"`
	Token       string        `koanf:"token"`
	BaseURL     string        `koanf:"base_url"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// DefaultTimeout bounds a single model call when the config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Options are the runtime collaborators for New.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
}

// CreateLLM creates a langchaingo model for an OpenAI-compatible endpoint.
func CreateLLM(config ModelConfig) (llms.Model, error) {
	opts := []openai.Option{openai.WithModel(config.ModelName)}
	if config.Token != "" {
		opts = append(opts, openai.WithToken(config.Token))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	return openai.New(opts...)
}

// New builds the provider client and wraps it with timeout, retry, usage
// accounting and, when CacheTTL is set, a response cache. The returned stop
// function releases the cache.
func New(config ModelConfig, o Options) (Completer, func(), error) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}

	var base Completer
	switch config.Provider {
	case ProviderOpenAI, "":
		c, err := NewLangchainCompleter(config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s client: %w", ProviderOpenAI, err)
		}
		base = c
	case ProviderAnthropic:
		base = NewAnthropicCompleter(config)
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var c Completer = WithTimeout(base, timeout)
	if config.MaxRetries > 0 {
		c = NewRetryCompleter(c, uint64(config.MaxRetries), log)
	}
	if o.Observer != nil {
		c = NewMeteredCompleter(c, NewTokenCounter(), o.Observer)
	}

	stop := func() {}
	if config.CacheTTL > 0 {
		cached := NewCachedCompleter(c, config.CacheTTL)
		c, stop = cached, cached.Stop
	}
	log.Debug("llm client ready", "provider", config.Provider, "model", config.ModelName, "timeout", timeout, "retries", config.MaxRetries)
	return c, stop, nil
}
