package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LangchainCompleter calls a langchaingo model with a single user prompt.
type LangchainCompleter struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewLangchainCompleter connects to the OpenAI-compatible endpoint in config.
func NewLangchainCompleter(config ModelConfig) (*LangchainCompleter, error) {
	model, err := CreateLLM(config)
	if err != nil {
		return nil, err
	}
	return FromModel(model, config), nil
}

// FromModel wraps an existing langchaingo model.
func FromModel(model llms.Model, config ModelConfig) *LangchainCompleter {
	return &LangchainCompleter{model: model, temperature: config.Temperature, maxTokens: config.MaxTokens}
}

func (c *LangchainCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, opts...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
