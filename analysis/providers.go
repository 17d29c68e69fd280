// CLAUDE:SUMMARY Builds langchaingo backends (OpenAI, Ollama, Gemini, Hugging Face) from environment credentials in a fixed preference order.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names, in default priority order.
const (
	OpenAI      = "openai"
	Ollama      = "ollama"
	Gemini      = "gemini"
	HuggingFace = "huggingface"
)

// Default models per provider.
var DefaultModels = map[string]string{
	OpenAI:      "gpt-4o-mini",
	Ollama:      "llama3.2:3b",
	Gemini:      "gemini-1.5-flash",
	HuggingFace: "microsoft/DialoGPT-medium",
}

// DefaultOllamaHost is the Ollama endpoint when none is configured.
const DefaultOllamaHost = "http://localhost:11434"

// Generation settings shared by every backend.
const (
	MaxTokens   = 300
	Temperature = 0.3
)

// Provider is the resolved configuration of one backend.
type Provider struct {
	Enabled bool
	APIKey  string
	// BaseURL overrides the service endpoint (Ollama host, OpenAI-compatible
	// gateway, Hugging Face inference URL).
	BaseURL string
	Model   string
}

// ProviderConfig holds every backend configuration. It is resolved once at
// startup and read-only afterwards.
type ProviderConfig struct {
	OpenAI      Provider
	Ollama      Provider
	Gemini      Provider
	HuggingFace Provider
}

// ProvidersFromEnv enables each backend whose credential or host variable
// is set: OPENAI_API_KEY, OLLAMA_HOST, GOOGLE_API_KEY, HUGGINGFACE_API_KEY.
// OPENAI_BASE_URL optionally redirects OpenAI calls. models overrides
// DefaultModels per provider name.
func ProvidersFromEnv(getenv func(string) string, models map[string]string) ProviderConfig {
	model := func(name string) string {
		if m := strings.TrimSpace(models[name]); m != "" {
			return m
		}
		return DefaultModels[name]
	}
	key := func(v string) string { return strings.TrimSpace(getenv(v)) }

	cfg := ProviderConfig{
		OpenAI:      Provider{APIKey: key("OPENAI_API_KEY"), BaseURL: key("OPENAI_BASE_URL"), Model: model(OpenAI)},
		Ollama:      Provider{BaseURL: key("OLLAMA_HOST"), Model: model(Ollama)},
		Gemini:      Provider{APIKey: key("GOOGLE_API_KEY"), Model: model(Gemini)},
		HuggingFace: Provider{APIKey: key("HUGGINGFACE_API_KEY"), Model: model(HuggingFace)},
	}
	cfg.OpenAI.Enabled = cfg.OpenAI.APIKey != ""
	cfg.Ollama.Enabled = cfg.Ollama.BaseURL != ""
	cfg.Gemini.Enabled = cfg.Gemini.APIKey != ""
	cfg.HuggingFace.Enabled = cfg.HuggingFace.APIKey != ""
	return cfg
}

// Enabled returns the names of enabled providers in priority order.
func (c ProviderConfig) Enabled() []string {
	var names []string
	for _, p := range []struct {
		name string
		on   bool
	}{
		{OpenAI, c.OpenAI.Enabled},
		{Ollama, c.Ollama.Enabled},
		{Gemini, c.Gemini.Enabled},
		{HuggingFace, c.HuggingFace.Enabled},
	} {
		if p.on {
			names = append(names, p.name)
		}
	}
	return names
}

// NewBackends constructs the enabled backends in priority order. A backend
// whose client cannot be built is logged and left out.
func NewBackends(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) []Backend {
	if logger == nil {
		logger = slog.Default()
	}
	type builder struct {
		name string
		p    Provider
		new  func(context.Context, Provider) (Backend, error)
	}
	builders := []builder{
		{OpenAI, cfg.OpenAI, newOpenAI},
		{Ollama, cfg.Ollama, newOllama},
		{Gemini, cfg.Gemini, newGemini},
		{HuggingFace, cfg.HuggingFace, newHuggingFace},
	}

	var out []Backend
	for _, b := range builders {
		if !b.p.Enabled {
			continue
		}
		backend, err := b.new(ctx, b.p)
		if err != nil {
			logger.Warn("analysis: provider disabled", "provider", b.name, "error", err)
			continue
		}
		out = append(out, backend)
	}
	return out
}

// LLMBackend adapts a langchaingo model to Backend. Chat backends receive
// SystemPrompt and UserPrompt as two messages; the others receive
// BuildPrompt as a single message.
type LLMBackend struct {
	name  string
	model llms.Model
	chat  bool
}

// NewLLMBackend wraps model under name.
func NewLLMBackend(name string, model llms.Model, chat bool) *LLMBackend {
	return &LLMBackend{name: name, model: model, chat: chat}
}

func (b *LLMBackend) Name() string { return b.name }

func (b *LLMBackend) Analyze(ctx context.Context, content, competitor string) (string, error) {
	var msgs []llms.MessageContent
	if b.chat {
		msgs = []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, UserPrompt(content, competitor)),
		}
	} else {
		msgs = []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(content, competitor)),
		}
	}

	resp, err := b.model.GenerateContent(ctx, msgs,
		llms.WithMaxTokens(MaxTokens),
		llms.WithTemperature(Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", b.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", b.name, ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", b.name, ErrEmptyResponse)
	}
	return text, nil
}

func newOpenAI(_ context.Context, p Provider) (Backend, error) {
	opts := []openai.Option{openai.WithToken(p.APIKey), openai.WithModel(p.Model)}
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init openai: %w", err)
	}
	return NewLLMBackend(OpenAI, m, true), nil
}

func newOllama(_ context.Context, p Provider) (Backend, error) {
	host := p.BaseURL
	if host == "" {
		host = DefaultOllamaHost
	}
	m, err := ollama.New(ollama.WithModel(p.Model), ollama.WithServerURL(host))
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	return NewLLMBackend(Ollama, m, false), nil
}

func newGemini(ctx context.Context, p Provider) (Backend, error) {
	m, err := googleai.New(ctx, googleai.WithAPIKey(p.APIKey), googleai.WithDefaultModel(p.Model))
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	return NewLLMBackend(Gemini, m, false), nil
}

func newHuggingFace(_ context.Context, p Provider) (Backend, error) {
	opts := []huggingface.Option{huggingface.WithToken(p.APIKey), huggingface.WithModel(p.Model)}
	if p.BaseURL != "" {
		opts = append(opts, huggingface.WithURL(p.BaseURL))
	}
	m, err := huggingface.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init huggingface: %w", err)
	}
	return NewLLMBackend(HuggingFace, m, false), nil
}
