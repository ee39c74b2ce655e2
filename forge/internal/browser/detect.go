package browser

import (
	"context"
	"errors"
	"strings"
)

// ErrBotDetected marks a navigation that landed on an automation wall
// instead of the storefront.
var ErrBotDetected = errors.New("browser: bot wall detected")

// botWallScanLimit caps how much of the document the body heuristics
// read. Challenge interstitials are tiny; real storefronts are not.
const botWallScanLimit = 16 << 10

// titleMarkers match challenge page titles. Body text is too noisy for
// short markers like "captcha", which legitimate pages embed in widget
// script URLs.
var titleMarkers = []string{
	"access denied",
	"just a moment",
	"attention required",
	"pardon our interruption",
	"robot check",
	"captcha",
}

// bodyMarkers are full interstitial phrases, safe to match anywhere in
// the document head.
var bodyMarkers = []string{
	"verify you are human",
	"checking your browser before accessing",
	"enable javascript and cookies to continue",
	"unusual traffic from your computer network",
}

// BlockedPage reports whether the title and document look like an
// automation wall rather than a real page, and which marker matched.
func BlockedPage(title, html string) (bool, string) {
	t := strings.ToLower(title)
	for _, m := range titleMarkers {
		if strings.Contains(t, m) {
			return true, m
		}
	}

	b := strings.ToLower(html)
	if len(b) > botWallScanLimit {
		b = b[:botWallScanLimit]
	}
	for _, m := range bodyMarkers {
		if strings.Contains(b, m) {
			return true, m
		}
	}
	return false, ""
}

// botWall snapshots the live page and runs the block-page heuristics.
// Snapshot failures report not-blocked; navigation already succeeded.
func (p *Page) botWall(ctx context.Context) (bool, string) {
	res, err := p.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return false, ""
	}
	html, err := p.HTML(ctx)
	if err != nil {
		return false, ""
	}
	return BlockedPage(res.Value.Str(), html)
}
