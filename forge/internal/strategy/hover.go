package strategy

import (
	"context"
	"fmt"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// ExtractHoverMenu walks the top-level navigation items, hovering each
// one so its flyout settles, and collects the item itself at depth 0
// plus any flyout children at depth 1.
func ExtractHoverMenu(ctx context.Context, p *Pass, strat *NavigationStrategy) ([]*category.Category, error) {
	nav := strat.Selector(SelNavContainer)
	topLevel := strat.Selector(SelTopLevelItems)
	if nav == "" || topLevel == "" || strat.Selector(SelCategoryLinks) == "" {
		return nil, fmt.Errorf("%w: hover menu requires nav_container, top_level_items and category_links selectors", ErrExtraction)
	}

	items, err := p.Driver.Query(ctx, nav+" "+topLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: query top-level items: %v", ErrExtraction, err)
	}
	p.Logger.Info("strategy: hover menu items found", "count", len(items))

	var cats []*category.Category
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return cats, err
		}
		itemCats, err := hoverItem(ctx, p, strat, item)
		cats = append(cats, itemCats...)
		if err != nil {
			skipElement(p.Logger, "hover item", err)
		}
	}
	return cats, nil
}

// hoverItem extracts one top-level item and its flyout children. A
// failure partway keeps whatever was already extracted for the item.
func hoverItem(ctx context.Context, p *Pass, strat *NavigationStrategy, item Element) ([]*category.Category, error) {
	if err := item.Hover(ctx); err != nil {
		return nil, err
	}
	if err := p.Driver.Sleep(ctx, p.settle()); err != nil {
		return nil, err
	}

	name, href, err := linkInfo(ctx, item, strat.Selector(SelCategoryLinks))
	if err != nil {
		return nil, err
	}
	top := &category.Category{ID: p.Counter.Next(), Name: name, URL: href, Depth: 0}
	if err := top.Validate(); err != nil {
		return nil, err
	}
	cats := []*category.Category{top}

	flyout := strat.Selector(SelFlyoutPanel)
	subSel := strat.Selector(SelSubcategoryItems)
	if flyout == "" || subSel == "" {
		return cats, nil
	}
	panels, err := p.Driver.Query(ctx, flyout)
	if err != nil {
		return cats, err
	}
	if len(panels) == 0 {
		return cats, nil
	}
	subs, err := panels[0].Query(ctx, subSel)
	if err != nil {
		return cats, err
	}

	subLink := strat.Selector(SelSubcategoryLink)
	for _, sub := range subs {
		subName, subHref, err := linkInfo(ctx, sub, subLink)
		if err != nil {
			skipElement(p.Logger, "flyout child", err)
			continue
		}
		child := &category.Category{
			ID:       p.Counter.Next(),
			Name:     subName,
			URL:      subHref,
			Depth:    1,
			ParentID: category.Ref(top.ID),
		}
		if err := child.Validate(); err != nil {
			skipElement(p.Logger, "flyout child", err)
			continue
		}
		cats = append(cats, child)
	}
	return cats, nil
}
