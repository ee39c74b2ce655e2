package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// maxNavBlocks caps the container scan. Mirrored menu copies (desktop
// plus mobile drawer) repeat the same links; scanning every copy
// multiplies work without new URLs.
const maxNavBlocks = 5

// trigger probes an element that opens a collapsed sidebar. A text
// value narrows the selector to elements whose visible text contains
// it, case-insensitively.
type trigger struct {
	selector string
	text     string
}

var sidebarTriggers = []trigger{
	{selector: "button", text: "Shop by Products"},
	{selector: "a", text: "Shop by Products"},
	{selector: "[data-testid='shop-by-products']"},
	{selector: ".shop-by-products"},
	{selector: "button", text: "Categories"},
	{selector: "button", text: "Browse"},
	{selector: "[aria-label*='Shop']"},
	{selector: "[aria-label*='Categories']"},
}

// ExtractClickNavigation handles sidebar, accordion and filter layouts:
// open the menu if a trigger is present, scan the navigation blocks for
// depth-0 links, and expand items that carry an expander icon to pull
// their depth-1 children.
func ExtractClickNavigation(ctx context.Context, p *Pass, strat *NavigationStrategy) ([]*category.Category, error) {
	container := strat.Selector(SelNavContainer)
	linkSel := strat.Selector(SelCategoryLinks)
	if container == "" || linkSel == "" {
		return nil, fmt.Errorf("%w: click navigation requires nav_container and category_links selectors", ErrExtraction)
	}

	activateSidebar(ctx, p)
	if err := p.Driver.Sleep(ctx, p.settle()); err != nil {
		return nil, err
	}

	blocks, err := p.Driver.Query(ctx, container)
	if err != nil {
		return nil, fmt.Errorf("%w: query navigation blocks: %v", ErrExtraction, err)
	}
	p.Logger.Info("strategy: navigation blocks found", "count", len(blocks), "selector", container)

	var cats []*category.Category
	seen := make(map[string]bool)
	for i, block := range blocks {
		if i >= p.maxBlocks() {
			p.Logger.Info("strategy: stopping block scan", "processed", i, "total", len(blocks))
			break
		}
		if err := ctx.Err(); err != nil {
			return cats, err
		}
		links, err := block.Query(ctx, linkSel)
		if err != nil {
			skipElement(p.Logger, "block links", err)
			continue
		}
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return cats, err
			}
			expandable := isExpandable(ctx, link)
			name, href, err := linkInfo(ctx, link, "")
			if err != nil {
				skipElement(p.Logger, "click nav link", err)
				continue
			}
			if seen[href] {
				continue
			}
			seen[href] = true
			top := &category.Category{ID: p.Counter.Next(), Name: name, URL: href, Depth: 0}
			if err := top.Validate(); err != nil {
				skipElement(p.Logger, "click nav link", err)
				continue
			}
			cats = append(cats, top)
			if expandable {
				cats = append(cats, expandChildren(ctx, p, link, top.ID)...)
			}
		}
	}
	return cats, nil
}

// activateSidebar clicks the first visible trigger so a collapsed menu
// renders. No trigger matching is normal: many sites keep the sidebar
// visible from the start.
func activateSidebar(ctx context.Context, p *Pass) {
	for _, tr := range sidebarTriggers {
		el := findTrigger(ctx, p.Driver, tr)
		if el == nil {
			continue
		}
		visible, err := el.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		if err := el.Click(ctx); err != nil {
			skipElement(p.Logger, "sidebar trigger", err)
			continue
		}
		p.Driver.Sleep(ctx, sidebarSettle)
		p.Logger.Info("strategy: activated sidebar menu", "selector", tr.selector, "text", tr.text)
		return
	}
	p.Logger.Debug("strategy: no sidebar trigger found, assuming menu already visible")
}

func findTrigger(ctx context.Context, d Driver, tr trigger) Element {
	els, err := d.Query(ctx, tr.selector)
	if err != nil || len(els) == 0 {
		return nil
	}
	if tr.text == "" {
		return els[0]
	}
	want := strings.ToLower(tr.text)
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), want) {
			return el
		}
	}
	return nil
}

// Indicators that a nav item expands in place rather than linking out.
var expandIndicators = []string{
	"svg", ".icon", ".arrow", ".chevron", "[class*='expand']", "[class*='toggle']",
}

// isExpandable reports whether a link carries an expander icon on
// itself or its parent. Lookup failures read as not expandable.
func isExpandable(ctx context.Context, link Element) bool {
	for _, ind := range expandIndicators {
		if els, err := link.Query(ctx, ind); err == nil && len(els) > 0 {
			return true
		}
	}
	parent, err := link.Parent(ctx)
	if err != nil || parent == nil {
		return false
	}
	for _, ind := range expandIndicators {
		if els, err := parent.Query(ctx, ind); err == nil && len(els) > 0 {
			return true
		}
	}
	return false
}

// Probes for the child list revealed by expanding an item, tried in
// order on the item and then on its parent.
var childListSelectors = []string{
	"ul", ":scope + ul", ":scope ~ ul", "[class*='submenu']", "[class*='child']", "[class*='nested']",
}

// expandChildren clicks an expandable item, scans for the revealed
// child list and extracts its links at depth 1, then clicks again to
// collapse. Any failure returns whatever was collected so far.
func expandChildren(ctx context.Context, p *Pass, item Element, parentID int) []*category.Category {
	if err := item.Click(ctx); err != nil {
		skipElement(p.Logger, "expand click", err)
		return nil
	}
	if err := p.Driver.Sleep(ctx, expandSettle); err != nil {
		return nil
	}

	var children []*category.Category
	for _, sel := range childListSelectors {
		list := findChildList(ctx, item, sel)
		if list == nil {
			continue
		}
		visible, err := list.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		links, err := list.Query(ctx, "a")
		if err != nil {
			continue
		}
		for _, link := range links {
			name, href, err := linkInfo(ctx, link, "")
			if err != nil {
				skipElement(p.Logger, "expanded child", err)
				continue
			}
			child := &category.Category{
				ID:       p.Counter.Next(),
				Name:     name,
				URL:      href,
				Depth:    1,
				ParentID: category.Ref(parentID),
			}
			if err := child.Validate(); err != nil {
				skipElement(p.Logger, "expanded child", err)
				continue
			}
			children = append(children, child)
		}
		if len(children) > 0 {
			break
		}
	}

	if len(children) > 0 {
		p.Logger.Debug("strategy: expanded subcategories", "parent_id", parentID, "count", len(children))
		if err := item.Click(ctx); err != nil {
			skipElement(p.Logger, "collapse click", err)
		}
		p.Driver.Sleep(ctx, collapseSettle)
	}
	return children
}

func findChildList(ctx context.Context, item Element, sel string) Element {
	if els, err := item.Query(ctx, sel); err == nil && len(els) > 0 {
		return els[0]
	}
	parent, err := item.Parent(ctx)
	if err != nil || parent == nil {
		return nil
	}
	if els, err := parent.Query(ctx, sel); err == nil && len(els) > 0 {
		return els[0]
	}
	return nil
}
