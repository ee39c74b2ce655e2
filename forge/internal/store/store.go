// Package store persists extraction results: retailers, the saved
// category tree per retailer, and run records with their stage
// history. Two backends exist, SQLite for local runs and PostgreSQL
// for a shared catalog database; both implement Store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// ErrNotFound is returned for lookups of rows that do not exist.
var ErrNotFound = errors.New("store: not found")

// Run stages, recorded as the pipeline advances.
const (
	StageInit      = "init"
	StageNavigate  = "navigate"
	StageAnalyze   = "analyze"
	StageExtract   = "extract"
	StageFinalize  = "finalize"
	StagePersist   = "persist"
	StageBlueprint = "blueprint"
	StageDone      = "done"
	StageFailed    = "failed"
)

// Run modes and page drivers, fixed when the run is created.
const (
	ModeAI     = "ai"
	ModeReplay = "replay"

	DriverBrowser = "browser"
	DriverStatic  = "static"
)

// Extraction sources recorded on finished runs.
const (
	SourceAI        = "ai"
	SourceFallback  = "fallback"
	SourceBlueprint = "blueprint"
)

// Retailer is one site the engine extracts for.
type Retailer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Enabled bool   `json:"enabled"`
}

// SavedCategory is a category row as persisted, with its database id
// and translated parent id.
type SavedCategory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Depth     int       `json:"depth"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveStats counts the outcome of one SaveCategories call.
type SaveStats struct {
	Saved   int `json:"saved"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Counts is the row census the health surface reports.
type Counts struct {
	Retailers  int `json:"retailers"`
	Categories int `json:"categories"`
	Runs       int `json:"runs"`
}

// Run is one extraction run from start to finish.
type Run struct {
	ID            string    `json:"run_id"`
	RetailerID    int64     `json:"retailer_id"`
	SiteURL       string    `json:"site_url"`
	Mode          string    `json:"mode"`
	Driver        string    `json:"driver"`
	Stage         string    `json:"stage"`
	Source        string    `json:"extraction_source,omitempty"`
	Categories    int       `json:"categories_found"`
	MaxDepth      int       `json:"max_depth"`
	Confidence    float64   `json:"confidence,omitempty"`
	BlueprintPath string    `json:"blueprint_path,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// StageEvent is one step of a run's stage history.
type StageEvent struct {
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence surface the engine works against.
type Store interface {
	UpsertRetailer(ctx context.Context, r Retailer) error
	GetRetailer(ctx context.Context, id int64) (*Retailer, error)

	// SaveCategories persists a finalized tree for a retailer: parents
	// before children, local parent ids translated to database ids,
	// existing rows matched by (url, retailer_id) and updated in place.
	// Row-level failures are counted, not fatal.
	SaveCategories(ctx context.Context, retailerID int64, cats []*category.Category) (SaveStats, error)
	GetCategories(ctx context.Context, retailerID int64, enabledOnly bool) ([]SavedCategory, error)
	DeleteCategories(ctx context.Context, retailerID int64) (int64, error)

	CreateRun(ctx context.Context, run *Run) error
	RecordStage(ctx context.Context, runID, stage, detail string) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, []StageEvent, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Health(ctx context.Context) error
	Stats(ctx context.Context) (Counts, error)
	Close() error
}

// normalizeNewRun fills the defaults both backends rely on at insert.
func normalizeNewRun(run *Run) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Stage == "" {
		run.Stage = StageInit
	}
	if run.Mode == "" {
		run.Mode = ModeAI
	}
	if run.Driver == "" {
		run.Driver = DriverBrowser
	}
}
