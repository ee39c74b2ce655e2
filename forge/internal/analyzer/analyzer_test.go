package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validReply = "```json\n" + `{
  "nav_models": [
    {
      "navigation_type": "hover_menu",
      "selectors": {"nav_container": "nav.main", "top_level_items": "li.top", "category_links": "a.cat"},
      "evidence": {"sample_text": ["Dairy", "Bakery"]},
      "requires_javascript": true,
      "confidence": 0.8
    }
  ],
  "best_index": 0
}` + "\n```"

func TestAnalyzer_Analyze(t *testing.T) {
	var prompts []string
	var shots [][]byte
	client := ClientFunc(func(ctx context.Context, prompt string, screenshot []byte) (string, error) {
		prompts = append(prompts, prompt)
		shots = append(shots, screenshot)
		return validReply, nil
	})

	a := New(client, testLogger())
	strat, err := a.Analyze(context.Background(), Request{
		URL:        "https://shop.example",
		HTML:       `<nav class="main"><a href="/c/dairy" class="cat">Dairy</a></nav>`,
		Screenshot: []byte("png-bytes"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if strat.NavigationType != "hover_menu" {
		t.Fatalf("got %q", strat.NavigationType)
	}
	if len(prompts) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "https://shop.example") || !strings.Contains(prompts[0], "/c/dairy") {
		t.Fatal("prompt should carry the url and the page markup")
	}
	if string(shots[0]) != "png-bytes" {
		t.Fatal("screenshot should reach the provider untouched")
	}
}

func TestAnalyzer_RetriesParseFailure(t *testing.T) {
	calls := 0
	client := ClientFunc(func(ctx context.Context, prompt string, screenshot []byte) (string, error) {
		calls++
		if calls == 1 {
			return "the page looks complicated, I cannot say", nil
		}
		return validReply, nil
	})

	a := New(client, testLogger(), WithRetries(2, time.Millisecond))
	strat, err := a.Analyze(context.Background(), Request{URL: "https://shop.example", HTML: "<nav>x</nav>"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if strat.NavigationType != "hover_menu" {
		t.Fatalf("got %q", strat.NavigationType)
	}
}

func TestAnalyzer_RetriesProviderFailure(t *testing.T) {
	calls := 0
	client := ClientFunc(func(ctx context.Context, prompt string, screenshot []byte) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection reset")
		}
		return validReply, nil
	})

	a := New(client, testLogger(), WithRetries(1, time.Millisecond))
	if _, err := a.Analyze(context.Background(), Request{URL: "https://shop.example", HTML: "<nav>x</nav>"}); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestAnalyzer_GivesUpAfterRetries(t *testing.T) {
	calls := 0
	client := ClientFunc(func(ctx context.Context, prompt string, screenshot []byte) (string, error) {
		calls++
		return "still no json from me", nil
	})

	a := New(client, testLogger(), WithRetries(1, time.Millisecond))
	_, err := a.Analyze(context.Background(), Request{URL: "https://shop.example", HTML: "<nav>x</nav>"})
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("want ErrAnalysis, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestAnalyzer_EmptyPageFailsFast(t *testing.T) {
	calls := 0
	client := ClientFunc(func(ctx context.Context, prompt string, screenshot []byte) (string, error) {
		calls++
		return validReply, nil
	})

	a := New(client, testLogger())
	_, err := a.Analyze(context.Background(), Request{URL: "https://shop.example", HTML: ""})
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("want ErrAnalysis, got %v", err)
	}
	if calls != 0 {
		t.Fatal("provider should not be called for an empty page")
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", 404)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header: got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"model":"vision-x"`) {
			t.Errorf("request missing model: %s", body)
		}
		if !strings.Contains(string(body), "describe the navigation") {
			t.Errorf("request missing prompt: %s", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "the reply"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderOptions{BaseURL: srv.URL, APIKey: "test-key", Model: "vision-x"})
	out, err := c.Complete(context.Background(), "describe the navigation", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "the reply" {
		t.Fatalf("got %q", out)
	}
}

func TestOpenAIClient_ScreenshotBecomesImagePart(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderOptions{BaseURL: srv.URL, Model: "vision-x"})
	if _, err := c.Complete(context.Background(), "look", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"image_url"`, "data:image/png;base64,", `"type":"text"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("request missing %q: %s", want, body)
		}
	}
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, 500)
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderOptions{BaseURL: srv.URL, Model: "vision-x"})
	_, err := c.Complete(context.Background(), "look", nil)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("want ErrProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error should carry the status: %v", err)
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient(ProviderOptions{BaseURL: srv.URL, Model: "vision-x"})
	_, err := c.Complete(context.Background(), "look", nil)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("want ErrProvider, got %v", err)
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", 404)
			return
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("api key header: got %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("version header: got %q", got)
		}
		body, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "model says"},
			},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient(ProviderOptions{BaseURL: srv.URL, APIKey: "sk-test", Model: "claude-x"})
	out, err := c.Complete(context.Background(), "look at this", []byte{9, 9})
	if err != nil {
		t.Fatal(err)
	}
	if out != "model says" {
		t.Fatalf("got %q", out)
	}
	for _, want := range []string{`"max_tokens":4096`, `"media_type":"image/png"`, "look at this"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("request missing %q: %s", want, body)
		}
	}
}

func TestNewProviderClient(t *testing.T) {
	cases := []struct {
		provider string
		wantBase string
		wantErr  bool
	}{
		{provider: "openai", wantBase: "https://api.openai.com/v1"},
		{provider: "", wantBase: "https://api.openai.com/v1"},
		{provider: "openrouter", wantBase: "https://openrouter.ai/api/v1"},
		{provider: "ollama", wantBase: "http://localhost:11434/v1"},
		{provider: "anthropic"},
		{provider: "mystery", wantErr: true},
	}
	for _, tc := range cases {
		c, err := NewProviderClient(ProviderOptions{Provider: tc.provider, Model: "m"})
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.provider)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.provider, err)
			continue
		}
		if tc.wantBase != "" {
			oc, ok := c.(*OpenAIClient)
			if !ok {
				t.Errorf("%q: expected OpenAI-compatible client, got %T", tc.provider, c)
				continue
			}
			if oc.http.BaseURL != tc.wantBase {
				t.Errorf("%q: base url %q", tc.provider, oc.http.BaseURL)
			}
		} else if _, ok := c.(*AnthropicClient); !ok {
			t.Errorf("%q: expected anthropic client, got %T", tc.provider, c)
		}
	}
}

func TestNewProviderClient_RequiresModel(t *testing.T) {
	if _, err := NewProviderClient(ProviderOptions{Provider: "openai"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}
