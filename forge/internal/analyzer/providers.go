package analyzer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrProvider marks transport and API failures talking to a model
// provider, as opposed to failures understanding what it said.
var ErrProvider = errors.New("analyzer: provider request failed")

const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096
)

// ProviderOptions configures a model provider client.
type ProviderOptions struct {
	// Provider is one of "openai", "openrouter", "ollama", "anthropic".
	Provider string
	// BaseURL overrides the provider's default endpoint. For ollama this
	// is the host, e.g. "http://localhost:11434".
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewProviderClient builds a Client for the named provider. OpenRouter
// and Ollama speak the OpenAI chat format, so they share that client
// with a different base URL.
func NewProviderClient(opts ProviderOptions) (Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("%w: model is required", ErrProvider)
	}
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "openai":
		return NewOpenAIClient(opts), nil
	case "openrouter":
		if opts.BaseURL == "" {
			opts.BaseURL = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIClient(opts), nil
	case "ollama":
		host := opts.BaseURL
		if host == "" {
			host = "http://localhost:11434"
		}
		opts.BaseURL = strings.TrimRight(host, "/") + "/v1"
		return NewOpenAIClient(opts), nil
	case "anthropic":
		return NewAnthropicClient(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProvider, opts.Provider)
	}
}

func apiError(provider string, status int, body []byte) error {
	return fmt.Errorf("%w: %s returned %d: %s", ErrProvider, provider, status, summarizeBody(body))
}

// summarizeBody keeps error bodies loggable. Provider error payloads
// can carry whole HTML pages.
func summarizeBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
