package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	anthropicDefaultBase = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
)

// AnthropicClient speaks the Anthropic messages API.
type AnthropicClient struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content []anthropicPart `json:"content"`
}

type anthropicPart struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAnthropicClient(opts ProviderOptions) *AnthropicClient {
	base := opts.BaseURL
	if base == "" {
		base = anthropicDefaultBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", anthropicVersion)
	if opts.APIKey != "" {
		c.SetHeader("x-api-key", opts.APIKey)
	}
	return &AnthropicClient{
		http:        c,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   maxTokens,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string, screenshot []byte) (string, error) {
	var parts []anthropicPart
	if len(screenshot) > 0 {
		parts = append(parts, anthropicPart{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: "image/png",
				Data:      base64.StdEncoding.EncodeToString(screenshot),
			},
		})
	}
	parts = append(parts, anthropicPart{Type: "text", Text: prompt})
	body := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: parts}},
	}

	var out anthropicResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if resp.IsError() {
		return "", apiError("anthropic messages", resp.StatusCode(), resp.Body())
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrProvider, out.Error.Message)
	}
	for _, part := range out.Content {
		if part.Type == "text" && part.Text != "" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("%w: reply has no text content", ErrProvider)
}
