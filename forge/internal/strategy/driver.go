package strategy

import (
	"context"
	"log/slog"
	"time"
)

// Driver is the capability surface strategies need from a page. The
// browser driver implements it over a live tab; the static driver
// implements the query surface over fetched HTML with interactions as
// no-ops.
type Driver interface {
	// Query returns all elements matching a CSS selector, document-wide.
	// A selector with no matches returns an empty slice, not an error.
	Query(ctx context.Context, selector string) ([]Element, error)
	// WaitVisible blocks until selector matches a visible element or
	// timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Sleep pauses for d so the page can settle, returning early only
	// on context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
	// ScrollBottom scrolls the document to its bottom edge.
	ScrollBottom(ctx context.Context) error
}

// Element is a handle on a single matched DOM node.
type Element interface {
	// Text returns the node's visible text.
	Text(ctx context.Context) (string, error)
	// Attr returns an attribute value, "" when the attribute is absent.
	Attr(ctx context.Context, name string) (string, error)
	// Query returns matches scoped to this node. Selectors may use
	// :scope to address siblings.
	Query(ctx context.Context, selector string) ([]Element, error)
	// Parent returns the parent node, or nil at the document root.
	Parent(ctx context.Context) (Element, error)
	Hover(ctx context.Context) error
	Click(ctx context.Context) error
	Visible(ctx context.Context) (bool, error)
}

// Settle pauses after interactions. Menus animate; querying before the
// DOM settles reads half-rendered panels.
const (
	hoverSettle    = 500 * time.Millisecond
	sidebarSettle  = 1000 * time.Millisecond
	expandSettle   = 800 * time.Millisecond
	collapseSettle = 300 * time.Millisecond
)

// skipElement is the single recovery policy for element-level
// failures: log at debug and let the caller move on to the next
// element. Anything fatal to the whole pass must be returned by the
// strategy instead; context cancellation is checked at loop
// boundaries, never swallowed here.
func skipElement(logger *slog.Logger, op string, err error) {
	logger.Debug("strategy: element skipped", "op", op, "error", err)
}
