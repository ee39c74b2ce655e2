package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

// ErrNavigation marks a navigation that never produced a usable page.
var ErrNavigation = errors.New("browser: navigation failed")

// navigationSettle gives late scripts time to build menus after the
// load event fires.
const navigationSettle = 2 * time.Second

// minimalPNG is a 1x1 transparent PNG returned when every capture
// attempt fails, so analysis can continue without a screenshot.
var minimalPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Page wraps a Rod page prepared for category extraction. It implements
// the strategy driver over live Chrome.
type Page struct {
	page    *rod.Page
	timeout time.Duration
	logger  *slog.Logger
}

var _ strategy.Driver = (*Page)(nil)

// Navigate loads the URL, waits for the load event, lets late scripts
// settle, and dismisses any cookie consent wall. A recognised block
// page fails with ErrBotDetected.
func (p *Page) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, pageURL, err)
	}
	if err := p.page.Context(navCtx).WaitLoad(); err != nil {
		p.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	if err := p.Sleep(navCtx, navigationSettle); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, pageURL, err)
	}

	p.dismissConsent(navCtx)

	if blocked, marker := p.botWall(navCtx); blocked {
		return fmt.Errorf("%w: %s: matched %q", ErrBotDetected, pageURL, marker)
	}
	return nil
}

// URL reports the page's current location, empty if unknown.
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// HTML serialises the complete DOM as outer HTML.
func (p *Page) HTML(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the page as PNG, preferring a full-page capture
// and degrading to the viewport, then to a blank placeholder.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	pg := p.page.Context(ctx)

	data, err := pg.Screenshot(true, nil)
	if err == nil {
		return data, nil
	}
	p.logger.Warn("browser: full page screenshot failed, trying viewport", "error", err)

	data, err = pg.Screenshot(false, nil)
	if err == nil {
		return data, nil
	}
	p.logger.Error("browser: viewport screenshot failed, using placeholder", "error", err)
	return minimalPNG, nil
}

// Close closes the tab. The browser itself stays up.
func (p *Page) Close() error {
	if p.page != nil {
		return p.page.Close()
	}
	return nil
}

// Query returns all elements matching the CSS selector without
// waiting. No match is an empty slice, not an error.
func (p *Page) Query(ctx context.Context, selector string) ([]strategy.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	return wrapElements(els), nil
}

// WaitVisible blocks until the selector matches a visible element or
// the timeout expires.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: wait for %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("browser: wait visible %q: %w", selector, err)
	}
	return nil
}

// Sleep pauses for d or until the context is cancelled.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ScrollBottom scrolls the window to the end of the document.
func (p *Page) ScrollBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// pageElement adapts a Rod element to the strategy element view.
type pageElement struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []strategy.Element {
	out := make([]strategy.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &pageElement{el: el})
	}
	return out
}

func (e *pageElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

// Attr returns the attribute value, empty when the attribute is absent.
func (e *pageElement) Attr(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *pageElement) Query(ctx context.Context, selector string) ([]strategy.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

// Parent returns the parent element, nil at the document root.
func (e *pageElement) Parent(ctx context.Context) (strategy.Element, error) {
	parent, err := e.el.Context(ctx).Parent()
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}
	return &pageElement{el: parent}, nil
}

func (e *pageElement) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *pageElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *pageElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}
