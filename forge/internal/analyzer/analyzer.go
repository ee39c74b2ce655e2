// Package analyzer turns a rendered page into a navigation strategy
// proposal: it condenses the page to its navigation regions, asks a
// model provider to describe the category structure, and parses the
// reply into the typed strategy the extraction engine runs.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

// ErrAnalysis marks failures between the page snapshot and a usable
// strategy: provider errors, unparseable replies, empty proposals.
var ErrAnalysis = errors.New("analyzer: analysis failed")

// Client is one model provider. It takes a rendered prompt plus an
// optional PNG screenshot and returns the model's raw text reply.
type Client interface {
	Complete(ctx context.Context, prompt string, screenshot []byte) (string, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, prompt string, screenshot []byte) (string, error)

func (f ClientFunc) Complete(ctx context.Context, prompt string, screenshot []byte) (string, error) {
	return f(ctx, prompt, screenshot)
}

// Request is one page to analyze. HTML is the full document; the
// analyzer condenses it before anything reaches the provider.
type Request struct {
	URL        string
	HTML       string
	Screenshot []byte
}

// Analyzer coordinates payload building, the provider call and reply
// parsing. It holds no per-run state.
type Analyzer struct {
	client     Client
	logger     *slog.Logger
	retries    int
	delay      time.Duration
	payloadCap int
}

// Option adjusts an Analyzer.
type Option func(*Analyzer)

// WithRetries sets how many additional attempts follow a failed one.
func WithRetries(n int, delay time.Duration) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.retries = n
		}
		a.delay = delay
	}
}

// WithPayloadCap bounds the sanitized HTML handed to the provider, in
// bytes. Zero keeps the package default.
func WithPayloadCap(n int) Option {
	return func(a *Analyzer) {
		a.payloadCap = n
	}
}

func New(client Client, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:  client,
		logger:  logger,
		retries: 2,
		delay:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze proposes a navigation strategy for the page. A failed
// attempt, whether the wire call or the reply parse, is retried up to
// the configured count; model output is flaky in ways a second ask
// usually fixes.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*strategy.NavigationStrategy, error) {
	payload := NavRegions(req.HTML, a.payloadCap)
	if payload == "" {
		return nil, fmt.Errorf("%w: page has no markup to analyze", ErrAnalysis)
	}
	digest := Digest(req.HTML, req.URL)
	prompt := BuildPrompt(req.URL, payload, digest)

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			a.logger.Warn("analyzer: retrying analysis",
				"attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.delay):
			}
		}

		content, err := a.client.Complete(ctx, prompt, req.Screenshot)
		if err != nil {
			lastErr = fmt.Errorf("%w: provider: %v", ErrAnalysis, err)
			continue
		}
		analysis, err := Parse(content)
		if err != nil {
			lastErr = err
			continue
		}

		a.logger.Info("analyzer: strategy proposed",
			"url", req.URL,
			"navigation_type", analysis.Strategy.NavigationType,
			"confidence", analysis.Strategy.Confidence,
			"evidence", analysis.Evidence)
		return analysis.Strategy, nil
	}
	return nil, lastErr
}
