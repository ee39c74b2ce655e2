package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const consentSettle = 500 * time.Millisecond

// consentButtons are tried in order after navigation. An entry with a
// text matches the element's text case-insensitively.
var consentButtons = []struct {
	selector string
	text     string
}{
	{"#accept-cookies", ""},
	{"#onetrust-accept-btn-handler", ""},
	{"[data-testid='cookie-accept']", ""},
	{".cookie-accept", ""},
	{"button", "accept"},
	{"button", "i agree"},
}

// dismissConsent clicks the first visible consent button, if any.
// Consent walls are optional chrome, so every failure is swallowed.
func (p *Page) dismissConsent(ctx context.Context) {
	pg := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	for _, btn := range consentButtons {
		var (
			el  *rod.Element
			err error
		)
		if btn.text != "" {
			el, err = pg.ElementR(btn.selector, "/"+btn.text+"/i")
		} else {
			el, err = pg.Element(btn.selector)
		}
		if err != nil || el == nil {
			continue
		}
		if visible, verr := el.Visible(); verr != nil || !visible {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			continue
		}
		_ = p.Sleep(ctx, consentSettle)
		p.logger.Debug("browser: accepted cookies", "selector", btn.selector, "text", btn.text)
		return
	}
}
