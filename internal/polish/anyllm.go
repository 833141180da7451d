package polish

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// AnyLLM implements [Completer] on top of github.com/mozilla-ai/any-llm-go,
// a unified multi-provider interface supporting OpenAI, Anthropic, Gemini,
// Ollama, DeepSeek, Mistral, and Groq.
type AnyLLM struct {
	backend anyllmlib.Provider
	model   string
}

// NewAnyLLM creates a Completer backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq". model is the specific model to use
// (e.g., "gpt-4o-mini"). opts are any-llm-go configuration options
// (e.g., anyllmlib.WithAPIKey, anyllmlib.WithBaseURL); without an API key
// option the provider falls back to its environment variable.
func NewAnyLLM(providerName, model string, opts ...anyllmlib.Option) (*AnyLLM, error) {
	if providerName == "" {
		return nil, fmt.Errorf("polish: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("polish: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("polish: create %q backend: %w", providerName, err)
	}
	return &AnyLLM{backend: backend, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider for the given provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// Complete implements [Completer].
func (a *AnyLLM) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	params := anyllmlib.CompletionParams{
		Model: a.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: user},
		},
	}
	if temperature != 0 {
		t := temperature
		params.Temperature = &t
	}

	resp, err := a.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("polish: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("polish: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

var _ Completer = (*AnyLLM)(nil)
