package forge

import (
	"github.com/AshleyColeman/templateForgeAi/forge/internal/blueprint"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/store"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
)

// Aliases for the internal types that cross the package boundary, so
// callers import only forge.
type (
	Category           = category.Category
	NavigationStrategy = strategy.NavigationStrategy
	InteractionStep    = strategy.InteractionStep
	Blueprint          = blueprint.Blueprint
	BlueprintEntry     = blueprint.Entry
	SaveStats          = store.SaveStats
	Run                = store.Run
	StageEvent         = store.StageEvent
	Retailer           = store.Retailer
)

// RunOutcome is the in-process result of one extraction or replay
// run. It mirrors the persisted run row plus the save statistics.
type RunOutcome struct {
	Run
	Stats SaveStats `json:"save_stats"`
}
