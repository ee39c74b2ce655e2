package strategy

import (
	"log/slog"
	"strings"
)

// Kind identifies one of the fixed extraction algorithms. The set is
// closed: anything the resolver does not recognise runs as generic.
type Kind int

const (
	KindGeneric Kind = iota
	KindHoverMenu
	KindClickNavigation
)

func (k Kind) String() string {
	switch k {
	case KindHoverMenu:
		return "hover_menu"
	case KindClickNavigation:
		return "click_navigation"
	default:
		return "generic"
	}
}

// Resolve maps a navigation_type tag to the algorithm that will run.
// Models sometimes emit pipe-delimited alternatives such as
// "sidebar|hover_menu"; only the first token counts, the rest are
// logged and ignored.
func Resolve(navigationType string, logger *slog.Logger) Kind {
	tag := strings.TrimSpace(navigationType)
	if strings.Contains(tag, "|") {
		first := strings.TrimSpace(strings.Split(tag, "|")[0])
		if logger != nil {
			logger.Info("strategy: multiple navigation types proposed, using first",
				"chosen", first, "proposed", tag)
		}
		tag = first
	}
	switch tag {
	case "hover_menu":
		return KindHoverMenu
	case "sidebar", "accordion", "filter_sidebar":
		return KindClickNavigation
	case "", "generic":
		return KindGeneric
	default:
		if logger != nil {
			logger.Warn("strategy: unknown navigation type, running generic",
				"navigation_type", tag)
		}
		return KindGeneric
	}
}
