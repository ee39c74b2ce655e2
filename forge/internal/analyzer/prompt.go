package analyzer

import (
	"fmt"
	"strings"
)

// promptHeadBytes caps how much payload HTML rides along in the
// prompt. The full payload stays available for debugging; the model
// gets the head, which holds the landmark containers.
const promptHeadBytes = 4000

const promptTemplate = `You analyze e-commerce pages to find PRODUCT CATEGORY navigation for an automated extractor.
Return ONLY valid JSON. No explanation outside the JSON, no comments, no trailing commas.

## GOAL
Describe how categories (departments, collections, shop-by sections, taxonomies) are implemented,
using REAL CSS selectors that appear in the HTML below.

## HARD REQUIREMENTS
1) Use only classes, ids and structures present in the provided HTML. Never invent selectors.
2) Prefer stable anchors: landmark tags (nav, header, aside), ARIA roles, data-* attributes.
3) Propose 1-3 candidate models in nav_models, strongest first, and set best_index.
4) Include up to 5 innerText samples as evidence so the proposal can be verified.
5) If no categories are visible, return empty selectors and a low confidence.

## NOISE TO AVOID
Account, login, register, cart, basket, wishlist, help, FAQ, contact, blog, checkout,
search, language and currency links are not categories.

## OUTPUT (STRICT JSON)
{
  "url": "<echo the url>",
  "html_truncated": true,
  "nav_models": [
    {
      "navigation_type": "hover_menu|sidebar|accordion|filter_sidebar|generic|unknown",
      "selectors": {
        "nav_container": "<selector>",
        "top_level_items": "<selector>",
        "category_links": "<selector>",
        "flyout_panel": "<selector, omit if none>",
        "subcategory_items": "<selector, omit if none>",
        "subcategory_link": "<selector, omit if none>"
      },
      "interactions": [
        {"action": "hover|click|wait|scroll", "target": "<selector or selector key>", "wait_for": "<selector, omit if none>", "timeout": 2000, "duration": 500}
      ],
      "link_filters": {
        "include": ["<href substrings like /category or /c/>"],
        "exclude": ["account", "login", "cart"]
      },
      "evidence": {"sample_text": ["<up to 5 category names seen in the HTML>"]},
      "requires_javascript": true,
      "dynamic_loading": false,
      "complexity": "simple|moderate|complex",
      "confidence": 0.0
    }
  ],
  "best_index": 0,
  "notes": ["one line on why the best model wins"]
}

## VALIDATION RULES
- Every selector MUST match something in the provided HTML.
- Use empty arrays instead of null. confidence is in [0.0, 1.0].
- best_index is the index of the strongest candidate in nav_models.
`

// BuildPrompt renders the full analysis request for one page.
func BuildPrompt(url, payload, digest string) string {
	head := payload
	truncated := false
	if len(head) > promptHeadBytes {
		head = head[:promptHeadBytes]
		truncated = true
	}

	var b strings.Builder
	b.WriteString(promptTemplate)
	fmt.Fprintf(&b, "\nURL: %s\n", url)
	if digest != "" {
		fmt.Fprintf(&b, "\nPAGE_DIGEST:\n%s\n", digest)
	}
	fmt.Fprintf(&b, "\nHTML_SNIPPET (truncated=%t):\n%s\nEND_OF_HTML\n", truncated, head)
	return b.String()
}
