package providers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ChamsBouzaiene/sitesmith/internal/config"
	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
)

// preset describes an OpenAI-compatible endpoint.
type preset struct {
	baseURL string
	apiKey  string // placeholder for local servers that ignore authentication
}

var presets = map[string]preset{
	"openai":   {},
	"deepseek": {baseURL: "https://api.deepseek.com/v1"},
	"groq":     {baseURL: "https://api.groq.com/openai/v1"},
	"gemini":   {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"ollama":   {baseURL: "http://localhost:11434/v1", apiKey: "ollama"},
	"lmstudio": {baseURL: "http://localhost:1234/v1", apiKey: "lm-studio"},
}

// Supported returns the provider names New accepts.
func Supported() []string {
	names := []string{"anthropic"}
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New creates the adapter for the configured provider. The configured base
// URL and timeout override the preset; opts are applied last.
func New(p config.Provider, opts ...Option) (engine.LLMClient, error) {
	model := p.Model
	if model == "" {
		model = config.DefaultModels[p.Name]
	}

	base := []Option{WithTimeout(p.GetTimeout())}

	if p.Name == "anthropic" {
		if p.APIKey == "" {
			return nil, fmt.Errorf("anthropic: API key not set")
		}
		if p.BaseURL != "" {
			base = append(base, WithBaseURL(p.BaseURL))
		}
		return NewAnthropicClient(p.APIKey, model, append(base, opts...)...), nil
	}

	pre, ok := presets[p.Name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (supported: %s)", p.Name, strings.Join(Supported(), ", "))
	}

	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = pre.apiKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key not set", p.Name)
	}

	baseURL := pre.baseURL
	if p.BaseURL != "" {
		baseURL = p.BaseURL
	}
	if baseURL != "" {
		base = append(base, WithBaseURL(baseURL))
	}
	return NewOpenAIClient(apiKey, model, append(base, opts...)...).WithName(p.Name), nil
}
