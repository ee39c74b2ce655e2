// Package blueprint records a successful extraction as a versioned
// JSON document that can be replayed later without an AI pass, and
// resolves stored documents from the blueprint directory.
package blueprint

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

// Version is the only blueprint format this codec reads or writes.
// Anything else fails the load, loudly.
const Version = "1.0"

// Producer identity stamped into blueprint metadata.
const (
	GeneratedBy  = "forgeai"
	AgentVersion = "0.1.0"
)

// ErrBlueprint marks every failure in generating, loading or replaying
// a blueprint.
var ErrBlueprint = errors.New("blueprint: operation failed")

// Blueprint is the stored record of one successful extraction:
// everything needed to repeat it plus expectations to judge the repeat
// against.
type Blueprint struct {
	Version            string                     `json:"version"`
	Metadata           Metadata                   `json:"metadata"`
	ExtractionStrategy StrategySummary            `json:"extraction_strategy"`
	Selectors          map[string]string          `json:"selectors"`
	Interactions       []strategy.InteractionStep `json:"interactions"`
	ValidationRules    ValidationRules            `json:"validation_rules"`
	ExtractionStats    Stats                      `json:"extraction_stats"`
	Notes              []string                   `json:"notes,omitempty"`
}

type Metadata struct {
	SiteURL         string    `json:"site_url"`
	RetailerID      int64     `json:"retailer_id"`
	RetailerName    string    `json:"retailer_name,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
	GeneratedBy     string    `json:"generated_by"`
	AgentVersion    string    `json:"agent_version"`
	ConfidenceScore float64   `json:"confidence_score"`
}

type StrategySummary struct {
	NavigationType     string `json:"navigation_type"`
	Complexity         string `json:"complexity"`
	RequiresJavascript bool   `json:"requires_javascript"`
	DynamicLoading     bool   `json:"dynamic_loading"`
	ExtractionMethod   string `json:"extraction_method"`
}

// ValidationRules bound what a healthy replay should produce, derived
// from the extraction the blueprint was generated from.
type ValidationRules struct {
	MinCategories  int      `json:"min_categories"`
	MaxCategories  int      `json:"max_categories"`
	MaxDepth       int      `json:"max_depth"`
	RequiredFields []string `json:"required_fields"`
	URLPattern     string   `json:"url_pattern,omitempty"`
}

type Stats struct {
	TotalCategories   int            `json:"total_categories"`
	MaxDepth          int            `json:"max_depth"`
	CategoriesByDepth map[string]int `json:"categories_by_depth"`
}

// Build assembles a blueprint from a finished extraction. It refuses
// empty extractions: a blueprint that replays to nothing is worse than
// no blueprint.
func Build(meta Metadata, strat *strategy.NavigationStrategy, source strategy.Source, cats []*category.Category) (*Blueprint, error) {
	if len(cats) == 0 {
		return nil, fmt.Errorf("%w: cannot build from zero categories", ErrBlueprint)
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: no navigation strategy recorded", ErrBlueprint)
	}

	meta.GeneratedBy = GeneratedBy
	meta.AgentVersion = AgentVersion
	meta.ConfidenceScore = strat.Confidence
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}

	total := len(cats)
	maxDepth := category.MaxDepth(cats)
	byDepth := make(map[string]int)
	for depth, n := range category.CountByDepth(cats) {
		byDepth[strconv.Itoa(depth)] = n
	}

	bp := &Blueprint{
		Version:  Version,
		Metadata: meta,
		ExtractionStrategy: StrategySummary{
			NavigationType:     orUnknown(strat.NavigationType),
			Complexity:         orUnknown(strat.Complexity),
			RequiresJavascript: strat.RequiresJS,
			DynamicLoading:     strat.DynamicLoading,
			ExtractionMethod:   string(source),
		},
		Selectors:    strat.Selectors,
		Interactions: strat.Interactions,
		ValidationRules: ValidationRules{
			MinCategories:  max(1, total/4),
			MaxCategories:  total * 2,
			MaxDepth:       maxDepth,
			RequiredFields: []string{"name", "url"},
		},
		ExtractionStats: Stats{
			TotalCategories:   total,
			MaxDepth:          maxDepth,
			CategoriesByDepth: byDepth,
		},
	}
	if strat.Notes != "" {
		bp.Notes = []string{strat.Notes}
	}
	if bp.Selectors == nil {
		bp.Selectors = map[string]string{}
	}
	if bp.Interactions == nil {
		bp.Interactions = []strategy.InteractionStep{}
	}
	return bp, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// StaticReplayable reports whether a blueprint can run on the static
// HTTP driver: no JavaScript requirement, no dynamic loading and no
// recorded interactions.
func StaticReplayable(bp *Blueprint) bool {
	return !bp.ExtractionStrategy.RequiresJavascript &&
		!bp.ExtractionStrategy.DynamicLoading &&
		len(bp.Interactions) == 0
}
