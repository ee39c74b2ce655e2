package strategy

import (
	"context"
	"fmt"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// ExtractGenericLinks is the flat scan used when no structured layout
// applies: every category_links match becomes a depth-0 category.
func ExtractGenericLinks(ctx context.Context, p *Pass, strat *NavigationStrategy) ([]*category.Category, error) {
	return ScanLinks(ctx, p, strat.Selector(SelCategoryLinks))
}

// ScanLinks collects every match of selector as a depth-0 category.
// Blueprint replay uses it directly so replayed extraction behaves
// exactly like a generic pass.
func ScanLinks(ctx context.Context, p *Pass, selector string) ([]*category.Category, error) {
	if selector == "" {
		return nil, fmt.Errorf("%w: generic extraction requires a category_links selector", ErrExtraction)
	}
	elements, err := p.Driver.Query(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("%w: query category links: %v", ErrExtraction, err)
	}
	p.Logger.Info("strategy: generic links found", "count", len(elements), "selector", selector)

	var cats []*category.Category
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return cats, err
		}
		name, href, err := linkInfo(ctx, el, "")
		if err != nil {
			skipElement(p.Logger, "generic link", err)
			continue
		}
		c := &category.Category{ID: p.Counter.Next(), Name: name, URL: href, Depth: 0}
		if err := c.Validate(); err != nil {
			skipElement(p.Logger, "generic link", err)
			continue
		}
		cats = append(cats, c)
	}
	return cats, nil
}
