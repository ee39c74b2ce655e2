package category

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL resolves raw against base and strips the fragment.
// Query parameters and trailing slashes are preserved: different
// servers treat them as different resources. Unparseable input is
// returned unchanged so it can still participate in dedup.
func NormalizeURL(base *url.URL, raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	resolved := u
	if base != nil {
		resolved = base.ResolveReference(u)
	}
	resolved.Fragment = ""
	return resolved.String()
}

// Finalize runs the strategy-agnostic finalisation pass over raw
// candidates: every URL is made absolute against baseURL and
// fragment-stripped (mutating the candidate in place), duplicates
// sharing (normalized URL, depth) are discarded keeping the first
// occurrence, and every non-nil parent reference must point at a
// surviving id.
//
// A dangling parent reference is a validation failure, including one
// introduced by dedup removing the referenced duplicate. The pass is
// identical for AI-guided extraction, fallback, and blueprint replay.
func Finalize(categories []*Category, baseURL string) ([]*Category, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", ErrValidation, baseURL, err)
	}

	type dedupKey struct {
		url   string
		depth int
	}
	seen := make(map[dedupKey]bool, len(categories))
	result := make([]*Category, 0, len(categories))

	for _, c := range categories {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		c.URL = NormalizeURL(base, c.URL)
		k := dedupKey{url: c.URL, depth: c.Depth}
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, c)
	}

	ids := make(map[int]bool, len(result))
	for _, c := range result {
		ids[c.ID] = true
	}
	for _, c := range result {
		if c.ParentID != nil && !ids[*c.ParentID] {
			return nil, fmt.Errorf("%w: category %d (%q) references missing parent %d",
				ErrValidation, c.ID, c.Name, *c.ParentID)
		}
	}
	return result, nil
}

// MaxDepth returns the deepest depth present, or 0 for an empty list.
func MaxDepth(categories []*Category) int {
	max := 0
	for _, c := range categories {
		if c.Depth > max {
			max = c.Depth
		}
	}
	return max
}

// CountByDepth returns the number of categories at each depth.
func CountByDepth(categories []*Category) map[int]int {
	counts := make(map[int]int)
	for _, c := range categories {
		counts[c.Depth]++
	}
	return counts
}
