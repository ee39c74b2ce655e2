package blueprint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

// Replay step defaults when a blueprint omits them.
const (
	defaultStepTimeout = 2 * time.Second
	defaultWaitPause   = 500 * time.Millisecond
)

// Replayer executes a stored blueprint against a page. It never
// consults an AI client and never escalates to fallback patterns: a
// blueprint either reproduces its recorded extraction or fails.
type Replayer struct {
	Driver strategy.Driver
	Logger *slog.Logger
}

// Run performs the recorded interactions, then scans the recorded
// category_links selector exactly like a generic extraction pass.
// Zero extracted categories is a failure, not an empty success.
func (r *Replayer) Run(ctx context.Context, bp *Blueprint) ([]*category.Category, error) {
	if err := r.interact(ctx, bp); err != nil {
		return nil, err
	}

	linkSel := strings.TrimSpace(bp.Selectors[strategy.SelCategoryLinks])
	if linkSel == "" {
		return nil, fmt.Errorf("%w: blueprint missing category_links selector", ErrBlueprint)
	}
	pass := &strategy.Pass{
		Driver:  r.Driver,
		Counter: category.NewCounter(),
		Logger:  r.Logger,
	}
	cats, err := strategy.ScanLinks(ctx, pass, linkSel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlueprint, err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("%w: replay produced no categories", ErrBlueprint)
	}
	r.checkBounds(bp, len(cats))
	return cats, nil
}

// interact replays each recorded step in order. Unknown actions are
// skipped with a note so newer blueprints degrade instead of failing;
// a step that cannot complete fails the replay.
func (r *Replayer) interact(ctx context.Context, bp *Blueprint) error {
	for i, step := range bp.Interactions {
		target := resolveSelector(bp.Selectors, step.Target)
		timeout := time.Duration(step.Timeout) * time.Millisecond
		if step.Timeout <= 0 {
			timeout = defaultStepTimeout
		}

		switch step.Action {
		case strategy.ActionHover, strategy.ActionClick:
			if err := r.pointer(ctx, step.Action, target, timeout); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrBlueprint, i, err)
			}
		case strategy.ActionWait:
			pause := time.Duration(step.Duration) * time.Millisecond
			if step.Duration <= 0 {
				pause = defaultWaitPause
			}
			if err := r.Driver.Sleep(ctx, pause); err != nil {
				return fmt.Errorf("%w: step %d wait: %v", ErrBlueprint, i, err)
			}
		case strategy.ActionScroll:
			if err := r.Driver.ScrollBottom(ctx); err != nil {
				return fmt.Errorf("%w: step %d scroll: %v", ErrBlueprint, i, err)
			}
		default:
			r.Logger.Debug("blueprint: skipping unknown action", "action", step.Action, "step", i)
		}

		if step.WaitFor != "" {
			sel := resolveSelector(bp.Selectors, step.WaitFor)
			if err := r.Driver.WaitVisible(ctx, sel, timeout); err != nil {
				return fmt.Errorf("%w: step %d wait_for %q: %v", ErrBlueprint, i, sel, err)
			}
		}
	}
	return nil
}

// pointer waits for the target to show, then hovers or clicks its
// first match.
func (r *Replayer) pointer(ctx context.Context, action, target string, timeout time.Duration) error {
	if target == "" {
		return fmt.Errorf("%s step missing target", action)
	}
	if err := r.Driver.WaitVisible(ctx, target, timeout); err != nil {
		return fmt.Errorf("%s target %q: %v", action, target, err)
	}
	els, err := r.Driver.Query(ctx, target)
	if err != nil {
		return fmt.Errorf("%s target %q: %v", action, target, err)
	}
	if len(els) == 0 {
		return fmt.Errorf("%s target %q matched nothing", action, target)
	}
	if action == strategy.ActionHover {
		return els[0].Hover(ctx)
	}
	return els[0].Click(ctx)
}

// checkBounds compares the replay count against the recorded
// expectations. Drift is logged, not fatal: catalogues shrink and grow
// under a blueprint that is still doing its job.
func (r *Replayer) checkBounds(bp *Blueprint, got int) {
	rules := bp.ValidationRules
	if rules.MinCategories > 0 && got < rules.MinCategories {
		r.Logger.Warn("blueprint: replay below expected minimum",
			"got", got, "min", rules.MinCategories)
	}
	if rules.MaxCategories > 0 && got > rules.MaxCategories {
		r.Logger.Warn("blueprint: replay above expected maximum",
			"got", got, "max", rules.MaxCategories)
	}
}

// resolveSelector treats a step target as a selector-map key first and
// as a literal CSS selector otherwise.
func resolveSelector(selectors map[string]string, key string) string {
	if v, ok := selectors[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(key)
}
