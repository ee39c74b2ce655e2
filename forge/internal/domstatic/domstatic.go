// Package domstatic implements the strategy driver over a fetched HTML
// document. Sites that render their navigation server-side replay on a
// single GET, no browser session required.
package domstatic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

var (
	// ErrFetch marks a page that could not be fetched or parsed.
	ErrFetch = errors.New("domstatic: fetch failed")
	// ErrUnsupported marks interactions a static document cannot perform.
	ErrUnsupported = errors.New("domstatic: interaction not supported")
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 10 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Driver serves selector queries from one parsed document.
type Driver struct {
	http   *resty.Client
	logger *slog.Logger
	doc    *goquery.Document
	url    string
}

var _ strategy.Driver = (*Driver)(nil)

// New creates a Driver with a browser-like request profile. Call Fetch
// or Load before querying.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		http: resty.New().
			SetTimeout(defaultTimeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
			SetHeader("Accept-Language", "en-US,en;q=0.9"),
		logger: logger,
	}
}

// Fetch GETs the URL and parses the document all queries run against.
func (d *Driver) Fetch(ctx context.Context, pageURL string) error {
	resp, err := d.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetch, pageURL, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: status %d", ErrFetch, pageURL, resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxBodySize {
		body = body[:maxBodySize]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: parse: %v", ErrFetch, pageURL, err)
	}

	d.doc = doc
	d.url = pageURL
	d.logger.Info("domstatic: fetched", "url", pageURL, "bytes", len(body))
	return nil
}

// Load parses HTML directly, bypassing the network. Cached snapshots
// and tests use it.
func (d *Driver) Load(pageURL, htmlText string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return fmt.Errorf("%w: parse: %v", ErrFetch, err)
	}
	d.doc = doc
	d.url = pageURL
	return nil
}

// URL reports the fetched page's location, empty before Fetch.
func (d *Driver) URL() string {
	return d.url
}

// Query returns all elements matching the CSS selector. Stored
// blueprints carry model-proposed selectors, so compile failures are
// errors here, not panics upstream.
func (d *Driver) Query(_ context.Context, selector string) ([]strategy.Element, error) {
	sel, err := d.find(selector)
	if err != nil {
		return nil, err
	}
	return wrapSelection(sel), nil
}

// WaitVisible reduces to a presence check: a static document is final,
// so an element absent now is absent forever.
func (d *Driver) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	sel, err := d.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("domstatic: %q not present", selector)
	}
	return nil
}

// Sleep returns immediately. Nothing settles in a static document.
func (d *Driver) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// ScrollBottom is a no-op. The whole document is already in hand.
func (d *Driver) ScrollBottom(_ context.Context) error {
	return nil
}

func (d *Driver) find(selector string) (*goquery.Selection, error) {
	if d.doc == nil {
		return nil, fmt.Errorf("%w: no document loaded", ErrFetch)
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("domstatic: selector %q: %w", selector, err)
	}
	return d.doc.FindMatcher(m), nil
}

// staticElement is one matched node.
type staticElement struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []strategy.Element {
	out := make([]strategy.Element, 0, sel.Length())
	for i := 0; i < sel.Length(); i++ {
		out = append(out, &staticElement{sel: sel.Eq(i)})
	}
	return out
}

func (e *staticElement) Text(_ context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e *staticElement) Attr(_ context.Context, name string) (string, error) {
	v, _ := e.sel.Attr(name)
	return v, nil
}

func (e *staticElement) Query(_ context.Context, selector string) ([]strategy.Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("domstatic: selector %q: %w", selector, err)
	}
	return wrapSelection(e.sel.FindMatcher(m)), nil
}

// Parent returns the parent element, nil once the walk leaves element
// territory.
func (e *staticElement) Parent(_ context.Context) (strategy.Element, error) {
	parent := e.sel.Parent()
	if parent.Length() == 0 {
		return nil, nil
	}
	if node := parent.Get(0); node == nil || node.Type != html.ElementNode {
		return nil, nil
	}
	return &staticElement{sel: parent}, nil
}

func (e *staticElement) Hover(_ context.Context) error {
	return fmt.Errorf("%w: hover", ErrUnsupported)
}

func (e *staticElement) Click(_ context.Context) error {
	return fmt.Errorf("%w: click", ErrUnsupported)
}

// Visible treats presence in the parsed document as visibility. Static
// replay has no render pass to consult.
func (e *staticElement) Visible(_ context.Context) (bool, error) {
	return true, nil
}
