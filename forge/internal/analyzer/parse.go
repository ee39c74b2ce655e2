package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

// Analysis is a parsed provider reply: the chosen strategy plus the
// evidence samples the model cited for it.
type Analysis struct {
	Strategy *strategy.NavigationStrategy
	Evidence []string
}

type rawInteraction struct {
	Action   string `json:"action"`
	Type     string `json:"type"` // some replies use "type" for the verb
	Target   string `json:"target"`
	WaitFor  string `json:"wait_for"`
	Timeout  int    `json:"timeout"`
	Duration int    `json:"duration"`
}

type rawFilters struct {
	Include         []string `json:"include"`
	Exclude         []string `json:"exclude"`
	IncludePatterns []string `json:"include_href_patterns"`
	ExcludePatterns []string `json:"exclude_href_patterns"`
}

type rawEvidence struct {
	SampleText []string `json:"sample_text"`
}

type rawModel struct {
	NavigationType string            `json:"navigation_type"`
	Selectors      map[string]string `json:"selectors"`
	Interactions   []rawInteraction  `json:"interactions"`
	LinkFilters    *rawFilters       `json:"link_filters"`
	Evidence       *rawEvidence      `json:"evidence"`
	RequiresJS     *bool             `json:"requires_javascript"`
	DynamicLoading bool              `json:"dynamic_loading"`
	Complexity     string            `json:"complexity"`
	Confidence     *float64          `json:"confidence"`
}

type rawAnalysis struct {
	NavModels []rawModel      `json:"nav_models"`
	BestIndex int             `json:"best_index"`
	Notes     json.RawMessage `json:"notes"`
}

// Parse extracts the strategy proposal from a raw model reply. Replies
// arrive as bare JSON, JSON inside a markdown fence, or JSON buried in
// prose; all three parse. Both the nav_models ranking format and flat
// single-model replies are accepted.
func Parse(content string) (*Analysis, error) {
	jsonStr, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var ra rawAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &ra); err != nil {
		return nil, fmt.Errorf("%w: parse reply: %v", ErrAnalysis, err)
	}

	var m rawModel
	if len(ra.NavModels) > 0 {
		idx := ra.BestIndex
		if idx < 0 || idx >= len(ra.NavModels) {
			idx = 0
		}
		m = ra.NavModels[idx]
	} else if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
		return nil, fmt.Errorf("%w: parse reply: %v", ErrAnalysis, err)
	}

	strat := &strategy.NavigationStrategy{
		NavigationType: orDefault(m.NavigationType, "unknown"),
		Selectors:      m.Selectors,
		Confidence:     0.5,
		Complexity:     m.Complexity,
		RequiresJS:     true,
		DynamicLoading: m.DynamicLoading,
		Notes:          notesLine(ra.Notes),
	}
	if m.Confidence != nil {
		strat.Confidence = *m.Confidence
	}
	if m.RequiresJS != nil {
		strat.RequiresJS = *m.RequiresJS
	}
	if strat.Selectors == nil {
		strat.Selectors = map[string]string{}
	}
	for _, ri := range m.Interactions {
		action := ri.Action
		if action == "" {
			action = ri.Type
		}
		strat.Interactions = append(strat.Interactions, strategy.InteractionStep{
			Action:   action,
			Target:   ri.Target,
			WaitFor:  ri.WaitFor,
			Timeout:  ri.Timeout,
			Duration: ri.Duration,
		})
	}
	if m.LinkFilters != nil {
		filters := &strategy.LinkFilters{
			Include: firstNonEmpty(m.LinkFilters.Include, m.LinkFilters.IncludePatterns),
			Exclude: firstNonEmpty(m.LinkFilters.Exclude, m.LinkFilters.ExcludePatterns),
		}
		if len(filters.Include) > 0 || len(filters.Exclude) > 0 {
			strat.LinkFilters = filters
		}
	}

	var evidence []string
	if m.Evidence != nil {
		evidence = m.Evidence.SampleText
	}
	return &Analysis{Strategy: strat, Evidence: evidence}, nil
}

// extractJSON finds the JSON document in a reply: a ```json fence
// first, otherwise the outermost brace pair.
func extractJSON(content string) (string, error) {
	if start := strings.Index(content, "```json"); start >= 0 {
		rest := content[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1], nil
	}
	return "", fmt.Errorf("%w: no JSON in reply", ErrAnalysis)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

// notesLine flattens the notes field, which models emit as either an
// array of strings or a single string.
func notesLine(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return ""
}
