package analyzer

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Payload size limits, in bytes of sanitized HTML.
const (
	maxPayload     = 60000
	bodyThreshold  = 30000
	maxBodyExtract = 20000
	maxDigest      = 1500
)

// Containers worth showing the model, scanned in priority order.
var navRegionSelectors = []string{
	"nav", "header", "aside", ".sidebar", ".navigation",
	"[role='navigation']", "[class*='menu']", "[class*='nav']",
	"[class*='category']", "[class*='department']", "[class*='collection']",
}

// Tags that only pad the payload.
const strippedTags = "script, style, noscript, img, svg, iframe, picture, source, video"

var payloadPolicy = buildPayloadPolicy()

// buildPayloadPolicy keeps document structure and selector-bearing
// attributes and drops everything executable or presentational. The
// model must see real classes and ids to propose real selectors.
func buildPayloadPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"nav", "header", "aside", "section", "main", "footer", "div",
		"ul", "ol", "li", "a", "button", "span", "p",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"strong", "em", "label", "summary", "details",
	)
	p.AllowAttrs("class", "id", "role", "aria-label", "aria-expanded",
		"aria-controls", "aria-haspopup", "data-testid", "data-toggle").Globally()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("type").OnElements("button")
	return p
}

// NavRegions condenses a document to the parts that can hold category
// navigation: landmark containers first, then a slice of the body for
// context when the landmarks come up small. Output is sanitized and
// capped at maxChars (maxPayload when <= 0); an unparseable document
// returns "".
func NavRegions(rawHTML string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = maxPayload
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find(strippedTags).Remove()

	seen := make(map[*html.Node]bool)
	var b strings.Builder
	for _, sel := range navRegionSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if len(s.Nodes) == 0 || seen[s.Nodes[0]] || b.Len() >= maxChars {
				return
			}
			seen[s.Nodes[0]] = true
			if region, err := goquery.OuterHtml(s); err == nil {
				b.WriteString(region)
				b.WriteByte('\n')
			}
		})
	}

	if b.Len() < bodyThreshold {
		body := doc.Find("body").Clone()
		body.Find("nav, header, aside").Remove()
		if rest, err := goquery.OuterHtml(body); err == nil {
			if len(rest) > maxBodyExtract {
				rest = rest[:maxBodyExtract]
			}
			b.WriteString(rest)
		}
	}

	out := payloadPolicy.Sanitize(b.String())
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return strings.TrimSpace(out)
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Digest renders a short markdown view of the page so the model sees
// readable link text next to the raw markup. Conversion failures just
// return an empty digest; the payload alone is enough to analyze.
func Digest(rawHTML, pageURL string) string {
	if rawHTML == "" {
		return ""
	}
	result, err := mdConverter.ConvertString(rawHTML, converter.WithDomain(pageURL))
	if err != nil {
		return ""
	}
	out := strings.TrimSpace(result)
	if len(out) > maxDigest {
		out = out[:maxDigest]
	}
	return out
}
