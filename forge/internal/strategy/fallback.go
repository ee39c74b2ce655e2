package strategy

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// Generic container probes tried in order when the primary strategy
// under-delivers. Sidebar and filter shapes first, then plain
// navigation landmarks.
var fallbackPatterns = []struct {
	container string
	links     string
}{
	{"aside", "a"},
	{".sidebar", "a"},
	{".filters", "a"},
	{"[class*='category']", "a"},
	{"[class*='filter']", "a"},
	{"nav", "a"},
	{".navigation", "a"},
	{"[role='navigation']", "a"},
}

// Href fragments that mark service links, never categories.
var fallbackSkipHrefs = []string{
	"login", "register", "cart", "checkout", "account",
	"search", "contact", "about", "help", "faq",
}

const (
	maxFallbackContainers = 3
	maxFallbackLinks      = 50
	// Name length bounds, exclusive. One or two characters is an icon
	// label; a hundred is a marketing sentence.
	minFallbackName = 2
	maxFallbackName = 100
)

// ExtractFallback scans the fixed patterns and stops at the first one
// that yields anything at all. It never fails outright: a page where
// no pattern matches simply returns an empty slice.
func ExtractFallback(ctx context.Context, p *Pass) ([]*category.Category, error) {
	var cats []*category.Category
	seen := make(map[string]bool)

	for _, pattern := range fallbackPatterns {
		if err := ctx.Err(); err != nil {
			return cats, err
		}
		containers, err := p.Driver.Query(ctx, pattern.container)
		if err != nil {
			skipElement(p.Logger, "fallback containers", err)
			continue
		}
		if len(containers) == 0 {
			continue
		}
		p.Logger.Debug("strategy: fallback pattern matched",
			"selector", pattern.container, "containers", len(containers))
		if len(containers) > maxFallbackContainers {
			containers = containers[:maxFallbackContainers]
		}

		for _, c := range containers {
			links, err := c.Query(ctx, pattern.links)
			if err != nil {
				skipElement(p.Logger, "fallback links", err)
				continue
			}
			if len(links) > maxFallbackLinks {
				links = links[:maxFallbackLinks]
			}
			for _, link := range links {
				name, href, err := linkInfo(ctx, link, "")
				if err != nil {
					skipElement(p.Logger, "fallback link", err)
					continue
				}
				if serviceHref(href) {
					continue
				}
				if seen[href] {
					continue
				}
				seen[href] = true
				if n := utf8.RuneCountInString(name); n <= minFallbackName || n >= maxFallbackName {
					continue
				}
				cats = append(cats, &category.Category{
					ID:    p.Counter.Next(),
					Name:  name,
					URL:   href,
					Depth: 0,
				})
			}
		}
		if len(cats) > 0 {
			p.Logger.Info("strategy: fallback extracted categories",
				"count", len(cats), "selector", pattern.container)
			break
		}
	}
	return cats, nil
}

func serviceHref(href string) bool {
	lower := strings.ToLower(href)
	for _, frag := range fallbackSkipHrefs {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
