package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const openaiDefaultBase = "https://api.openai.com/v1"

// OpenAIClient speaks the OpenAI chat completions format. It also
// serves OpenRouter and Ollama, which expose the same endpoint shape.
type OpenAIClient struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a plain string for text-only turns and a []chatPart
	// when a screenshot rides along.
	Content any `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageRef `json:"image_url,omitempty"`
}

type chatImageRef struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAIClient(opts ProviderOptions) *OpenAIClient {
	base := opts.BaseURL
	if base == "" {
		base = openaiDefaultBase
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
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		c.SetAuthToken(opts.APIKey)
	}
	return &OpenAIClient{
		http:        c,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   maxTokens,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, screenshot []byte) (string, error) {
	msg := chatMessage{Role: "user", Content: prompt}
	if len(screenshot) > 0 {
		msg.Content = []chatPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &chatImageRef{URL: pngDataURI(screenshot)}},
		}
	}
	body := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{msg},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if resp.IsError() {
		return "", apiError("chat completions", resp.StatusCode(), resp.Body())
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrProvider, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: reply has no choices", ErrProvider)
	}
	return out.Choices[0].Message.Content, nil
}

func pngDataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
