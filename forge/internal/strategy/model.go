package strategy

import "strings"

// Selector map keys the analyzer populates. Strategies read only the
// keys they understand; extra keys are carried through untouched.
const (
	SelNavContainer     = "nav_container"
	SelTopLevelItems    = "top_level_items"
	SelCategoryLinks    = "category_links"
	SelFlyoutPanel      = "flyout_panel"
	SelSubcategoryItems = "subcategory_items"
	SelSubcategoryLink  = "subcategory_link"
)

// Interaction step actions known to the replay executor.
const (
	ActionHover  = "hover"
	ActionClick  = "click"
	ActionWait   = "wait"
	ActionScroll = "scroll"
)

// NavigationStrategy is the AI-proposed description of how a page's
// category navigation is structured and how to extract from it. The
// engine treats it as read-only after parsing.
type NavigationStrategy struct {
	NavigationType string            `json:"navigation_type"`
	Selectors      map[string]string `json:"selectors"`
	Interactions   []InteractionStep `json:"interactions,omitempty"`
	LinkFilters    *LinkFilters      `json:"link_filters,omitempty"`
	Confidence     float64           `json:"confidence"`

	// Analyzer context carried into blueprint metadata.
	Complexity     string `json:"complexity,omitempty"`
	RequiresJS     bool   `json:"requires_javascript,omitempty"`
	DynamicLoading bool   `json:"dynamic_loading,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Selector returns the trimmed selector stored under key, or "" when
// the key is unset.
func (s *NavigationStrategy) Selector(key string) string {
	if s == nil || s.Selectors == nil {
		return ""
	}
	return strings.TrimSpace(s.Selectors[key])
}

// InteractionStep is one scripted page interaction recorded by the
// analyzer and replayed from blueprints. Timeout and Duration are in
// milliseconds.
type InteractionStep struct {
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	WaitFor  string `json:"wait_for,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// LinkFilters carries analyzer-proposed include/exclude URL substrings.
// They are recorded in blueprints for downstream consumers; the
// extraction pass itself does not apply them.
type LinkFilters struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}
