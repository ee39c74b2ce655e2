// Package strategy implements the extraction algorithms that turn an
// AI-proposed navigation strategy into raw category candidates, plus
// the noise detection and fallback escalation that guard against bad
// proposals.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// ErrExtraction is returned when a strategy cannot run at all: required
// selectors are absent or the page never produced the expected
// structure. Fatal to the strategy attempt; the caller may still
// escalate to fallback patterns.
var ErrExtraction = errors.New("strategy: extraction failed")

// Source records which path produced the final candidate set.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// minPrimaryResults is the escalation threshold: fewer primary results
// than this smells like menu buttons rather than categories.
const minPrimaryResults = 5

// Pass carries the run-scoped collaborators for one extraction pass.
// Every run builds its own Pass with its own Counter; nothing in a
// Pass is shared across runs. The tuning fields are optional; zero
// values fall back to the package defaults.
type Pass struct {
	Driver  Driver
	Counter *category.Counter
	Logger  *slog.Logger

	// MinResults is the escalation threshold, default 5.
	MinResults int
	// MaxBlocks caps the click-navigation container scan, default 5.
	MaxBlocks int
	// Settle overrides the post-interaction settle delay, default 500ms.
	Settle time.Duration
}

func (p *Pass) minResults() int {
	if p.MinResults > 0 {
		return p.MinResults
	}
	return minPrimaryResults
}

func (p *Pass) maxBlocks() int {
	if p.MaxBlocks > 0 {
		return p.MaxBlocks
	}
	return maxNavBlocks
}

func (p *Pass) settle() time.Duration {
	if p.Settle > 0 {
		return p.Settle
	}
	return hoverSettle
}

// Extract runs the algorithm resolved from the strategy's navigation
// type, then applies the escalation gate: an empty, thin or noisy
// primary result triggers the generic fallback patterns. The fallback
// result replaces the primary only when strictly larger; otherwise the
// primary stands, however small.
func Extract(ctx context.Context, p *Pass, strat *NavigationStrategy) ([]*category.Category, Source, error) {
	kind := Resolve(strat.NavigationType, p.Logger)

	var cats []*category.Category
	var err error
	switch kind {
	case KindHoverMenu:
		cats, err = ExtractHoverMenu(ctx, p, strat)
	case KindClickNavigation:
		cats, err = ExtractClickNavigation(ctx, p, strat)
	default:
		cats, err = ExtractGenericLinks(ctx, p, strat)
	}
	if err != nil {
		if !errors.Is(err, ErrExtraction) {
			return nil, "", err
		}
		// The guided attempt is dead, but generic patterns may still
		// find the navigation.
		p.Logger.Warn("strategy: primary extraction failed, trying fallback",
			"kind", kind.String(), "error", err)
		cats = nil
	}

	needsFallback := false
	switch {
	case len(cats) == 0:
		p.Logger.Warn("strategy: no categories from primary, trying fallback",
			"kind", kind.String())
		needsFallback = true
	case len(cats) < p.minResults():
		p.Logger.Warn("strategy: suspiciously few categories, trying fallback",
			"count", len(cats))
		needsFallback = true
	case LooksLikeNoise(cats):
		p.Logger.Warn("strategy: categories look like navigation chrome, trying fallback")
		needsFallback = true
	}

	source := SourceAI
	if needsFallback {
		fb, fbErr := ExtractFallback(ctx, p)
		if fbErr != nil {
			return nil, "", fbErr
		}
		switch {
		case len(fb) > len(cats):
			p.Logger.Info("strategy: fallback found more categories",
				"fallback", len(fb), "primary", len(cats))
			cats = fb
			source = SourceFallback
		case len(cats) > 0:
			source = SourceAI
		default:
			source = SourceFallback
		}
	}

	return cats, source, nil
}

// linkInfo reads (name, href) from el. When sub is non-empty and
// matches inside el, the first match is read instead: analyzer
// selector maps often point at a wrapper with the real link nested.
func linkInfo(ctx context.Context, el Element, sub string) (name, href string, err error) {
	handle := el
	if sub != "" {
		matches, qErr := el.Query(ctx, sub)
		if qErr == nil && len(matches) > 0 {
			handle = matches[0]
		}
	}
	text, err := handle.Text(ctx)
	if err != nil {
		return "", "", err
	}
	href, err = handle.Attr(ctx, "href")
	if err != nil {
		return "", "", err
	}
	if href == "" {
		return "", "", fmt.Errorf("%w: link missing href", ErrExtraction)
	}
	return strings.TrimSpace(text), href, nil
}
