// Package forge assembles the category extraction engine: a Chrome or
// static-HTML page driver, the AI navigation analyzer, the extraction
// strategies and the persistence and blueprint layers, orchestrated as
// staged, recorded runs.
package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/analyzer"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/blueprint"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/browser"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/domstatic"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/store"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/strategy"
	"github.com/AshleyColeman/templateForgeAi/idgen"
)

// Sentinels callers can match with errors.Is. ErrBotDetected and
// ErrNotFound re-surface internal ones so callers need only forge.
var (
	ErrNoAnalyzer   = errors.New("forge: analyzer not configured, set analyzer.model and credentials")
	ErrNoCategories = errors.New("forge: extraction produced no categories")

	ErrBotDetected = browser.ErrBotDetected
	ErrNotFound    = store.ErrNotFound
	ErrBlueprint   = blueprint.ErrBlueprint
)

// finishTimeout bounds the final run-record write when the run context
// is already dead.
const finishTimeout = 5 * time.Second

// Service is the engine façade. One Service serves any number of
// sequential or concurrent runs; the browser starts on first use.
type Service struct {
	cfg      *Config
	logger   *slog.Logger
	store    store.Store
	manager  *browser.Manager
	registry *blueprint.Registry
	analyzer *analyzer.Analyzer
	ids      idgen.Generator
}

// New wires a Service from cfg. The store is opened here; the browser
// is not launched until a run needs it. Without analyzer credentials
// the Service still replays blueprints and serves stored state, but
// Run returns ErrNoAnalyzer.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.OpenPostgres(ctx, cfg.Store.DSN, logger)
	default:
		st, err = store.OpenSQLite(cfg.Store.Path, logger)
	}
	if err != nil {
		return nil, err
	}

	headless := true
	if cfg.Browser.Headless != nil {
		headless = *cfg.Browser.Headless
	}
	s := &Service{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: blueprint.NewRegistry(cfg.Blueprints.Dir),
		ids:      idgen.Default,
		manager: browser.NewManager(browser.Config{
			RemoteURL:  cfg.Browser.RemoteURL,
			ChromePath: cfg.Browser.ChromePath,
			Headless:   headless,
			NavTimeout: time.Duration(cfg.Browser.TimeoutMS) * time.Millisecond,
			Width:      cfg.Browser.Width,
			Height:     cfg.Browser.Height,
			UserAgent:  cfg.Browser.UserAgent,
			Logger:     logger,
		}),
	}

	if cfg.Analyzer.Model != "" {
		client, err := analyzer.NewProviderClient(analyzer.ProviderOptions{
			Provider:    cfg.Analyzer.Provider,
			BaseURL:     cfg.Analyzer.BaseURL,
			APIKey:      cfg.Analyzer.APIKey,
			Model:       cfg.Analyzer.Model,
			Temperature: cfg.Analyzer.Temperature,
			MaxTokens:   cfg.Analyzer.MaxTokens,
			Timeout:     time.Duration(cfg.Analyzer.TimeoutMS) * time.Millisecond,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		s.analyzer = analyzer.New(client, logger,
			analyzer.WithRetries(cfg.Analyzer.MaxRetries,
				time.Duration(cfg.Analyzer.RetryDelayMS)*time.Millisecond),
			analyzer.WithPayloadCap(cfg.Analyzer.MaxHTMLChars))
	} else {
		logger.Warn("forge: analyzer.model not set, AI extraction disabled")
	}

	return s, nil
}

// Close releases the store and the browser. Each failure is logged;
// one does not keep the other open.
func (s *Service) Close() error {
	var errs []error
	if err := s.store.Close(); err != nil {
		s.logger.Error("forge: store close failed", "error", err)
		errs = append(errs, err)
	}
	if err := s.manager.Close(); err != nil {
		s.logger.Error("forge: browser close failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run performs one AI-assisted extraction of siteURL for retailerID:
// navigate, analyze, extract (with fallback escalation), finalize,
// persist, record a blueprint. On a failed run the returned outcome is
// still populated with the stage reached and the recorded error.
func (s *Service) Run(ctx context.Context, retailerID int64, siteURL string) (*RunOutcome, error) {
	if err := ValidateTargetURL(siteURL, s.cfg.Browser.AllowPrivateHosts); err != nil {
		return nil, err
	}
	if s.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	run := &store.Run{
		ID:         s.ids(),
		RetailerID: retailerID,
		SiteURL:    siteURL,
		Mode:       store.ModeAI,
		Driver:     store.DriverBrowser,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	s.logger.Info("forge: run started",
		"run_id", run.ID, "retailer_id", retailerID, "url", siteURL)
	retailerName := s.retailerName(ctx, retailerID)

	s.stage(ctx, run, store.StageNavigate, siteURL)
	if err := s.manager.Start(ctx); err != nil {
		return s.fail(run, err)
	}
	page, err := s.manager.NewPage()
	if err != nil {
		return s.fail(run, err)
	}
	defer s.closePage(run.ID, page)
	if err := page.Navigate(ctx, siteURL); err != nil {
		return s.fail(run, err)
	}

	s.stage(ctx, run, store.StageAnalyze, "")
	html, err := page.HTML(ctx)
	if err != nil {
		return s.fail(run, err)
	}
	shot, err := page.Screenshot(ctx)
	if err != nil {
		s.logger.Warn("forge: screenshot unavailable", "run_id", run.ID, "error", err)
		shot = nil
	}
	strat, err := s.analyzer.Analyze(ctx, analyzer.Request{
		URL:        page.URL(),
		HTML:       html,
		Screenshot: shot,
	})
	if err != nil {
		return s.fail(run, err)
	}
	run.Confidence = strat.Confidence

	s.stage(ctx, run, store.StageExtract, strat.NavigationType)
	cats, source, err := strategy.Extract(ctx, s.newPass(page), strat)
	if err != nil {
		return s.fail(run, err)
	}
	run.Source = string(source)

	s.stage(ctx, run, store.StageFinalize, "")
	final, err := s.finalize(cats, siteURL)
	if err != nil {
		return s.fail(run, err)
	}
	run.Categories = len(final)
	run.MaxDepth = category.MaxDepth(final)

	s.stage(ctx, run, store.StagePersist, "")
	stats, err := s.store.SaveCategories(ctx, retailerID, final)
	if err != nil {
		return s.fail(run, err)
	}

	// A blueprint failure loses only the blueprint, never a persisted
	// extraction.
	s.stage(ctx, run, store.StageBlueprint, "")
	path, err := s.writeBlueprint(retailerID, retailerName, page.URL(), strat, source, final)
	if err != nil {
		s.logger.Error("forge: blueprint not recorded", "run_id", run.ID, "error", err)
		s.stage(ctx, run, store.StageBlueprint, "failed: "+err.Error())
	} else {
		run.BlueprintPath = path
	}

	s.finish(run, store.StageDone)
	s.logger.Info("forge: run done",
		"run_id", run.ID,
		"categories", run.Categories,
		"max_depth", run.MaxDepth,
		"source", run.Source,
		"blueprint", run.BlueprintPath)
	return &RunOutcome{Run: *run, Stats: stats}, nil
}

// ResolveBlueprint maps a bare blueprint file name to its path in the
// configured blueprint directory. Names that do not look like
// generated artifacts are rejected before any filesystem access.
func (s *Service) ResolveBlueprint(name string) (string, error) {
	if !ValidBlueprintName(name) {
		return "", fmt.Errorf("%w: not a blueprint artifact name: %q", ErrBlueprint, name)
	}
	return s.registry.Resolve(name)
}

// Replay repeats a stored blueprint without an AI pass. path may be
// empty, which resolves the newest blueprint for the retailer; siteURL
// may be empty, which replays against the recorded URL. Eligible
// blueprints run on the static fetcher instead of Chrome.
func (s *Service) Replay(ctx context.Context, retailerID int64, siteURL, path string) (*RunOutcome, error) {
	var bp *blueprint.Blueprint
	var err error
	if path == "" {
		bp, path, err = s.registry.Latest(retailerID)
	} else {
		bp, err = blueprint.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if retailerID == 0 {
		retailerID = bp.Metadata.RetailerID
	}
	if siteURL == "" {
		siteURL = bp.Metadata.SiteURL
	}
	if err := ValidateTargetURL(siteURL, s.cfg.Browser.AllowPrivateHosts); err != nil {
		return nil, err
	}

	driver := store.DriverBrowser
	if blueprint.StaticReplayable(bp) {
		driver = store.DriverStatic
	}
	run := &store.Run{
		ID:            s.ids(),
		RetailerID:    retailerID,
		SiteURL:       siteURL,
		Mode:          store.ModeReplay,
		Driver:        driver,
		Confidence:    bp.Metadata.ConfidenceScore,
		BlueprintPath: path,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	s.logger.Info("forge: replay started",
		"run_id", run.ID, "blueprint", path, "driver", driver, "url", siteURL)

	s.stage(ctx, run, store.StageNavigate, "driver="+driver)
	var drv strategy.Driver
	if driver == store.DriverStatic {
		d := domstatic.New(s.logger)
		if err := d.Fetch(ctx, siteURL); err != nil {
			return s.fail(run, err)
		}
		drv = d
	} else {
		if err := s.manager.Start(ctx); err != nil {
			return s.fail(run, err)
		}
		page, err := s.manager.NewPage()
		if err != nil {
			return s.fail(run, err)
		}
		defer s.closePage(run.ID, page)
		if err := page.Navigate(ctx, siteURL); err != nil {
			return s.fail(run, err)
		}
		drv = page
	}

	s.stage(ctx, run, store.StageExtract, "")
	rep := &blueprint.Replayer{Driver: drv, Logger: s.logger}
	cats, err := rep.Run(ctx, bp)
	if err != nil {
		return s.fail(run, err)
	}
	run.Source = store.SourceBlueprint

	s.stage(ctx, run, store.StageFinalize, "")
	final, err := s.finalize(cats, siteURL)
	if err != nil {
		return s.fail(run, err)
	}
	run.Categories = len(final)
	run.MaxDepth = category.MaxDepth(final)

	s.stage(ctx, run, store.StagePersist, "")
	stats, err := s.store.SaveCategories(ctx, retailerID, final)
	if err != nil {
		return s.fail(run, err)
	}

	s.finish(run, store.StageDone)
	s.logger.Info("forge: replay done",
		"run_id", run.ID, "categories", run.Categories, "driver", driver)
	return &RunOutcome{Run: *run, Stats: stats}, nil
}

// BatchTarget is one entry of a batch file.
type BatchTarget struct {
	RetailerID int64  `yaml:"retailer_id" json:"retailer_id"`
	URL        string `yaml:"url" json:"url"`
}

// LoadBatchFile reads a YAML list of batch targets.
func LoadBatchFile(path string) ([]BatchTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("forge: read batch file: %w", err)
	}
	var targets []BatchTarget
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("forge: parse batch file %s: %w", path, err)
	}
	return targets, nil
}

// RunBatch extracts every target with at most concurrency runs in
// flight, one page per run on the shared browser. A failed run is
// reported in its outcome and does not stop the others.
func (s *Service) RunBatch(ctx context.Context, targets []BatchTarget, concurrency int) []*RunOutcome {
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]*RunOutcome, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, tgt := range targets {
		g.Go(func() error {
			out, err := s.Run(gctx, tgt.RetailerID, tgt.URL)
			if out == nil {
				// Rejected before a run record existed.
				out = &RunOutcome{Run: store.Run{
					RetailerID: tgt.RetailerID,
					SiteURL:    tgt.URL,
					Stage:      store.StageFailed,
					Error:      err.Error(),
				}}
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait() // failures live in the outcomes

	done := 0
	for _, out := range outcomes {
		if out != nil && out.Stage == store.StageDone {
			done++
		}
	}
	s.logger.Info("forge: batch finished", "targets", len(targets), "done", done)
	return outcomes
}

// HealthReport is the service health snapshot.
type HealthReport struct {
	OK         bool          `json:"ok"`
	Store      string        `json:"store"`
	Browser    string        `json:"browser"`
	Counts     *store.Counts `json:"counts,omitempty"`
	Blueprints int           `json:"blueprints"`
}

// Health probes the store and counts blueprints. probeBrowser launches
// Chrome to prove it can start; the HTTP health endpoint leaves it off
// so a status poll never boots a browser.
func (s *Service) Health(ctx context.Context, probeBrowser bool) *HealthReport {
	rep := &HealthReport{OK: true, Store: "ok", Browser: "not started"}

	if err := s.store.Health(ctx); err != nil {
		rep.OK = false
		rep.Store = err.Error()
	} else if counts, err := s.store.Stats(ctx); err == nil {
		rep.Counts = &counts
	}

	entries, err := s.registry.List()
	if err != nil {
		rep.OK = false
	}
	rep.Blueprints = len(entries)

	if s.manager.Started() {
		rep.Browser = "ok"
	} else if probeBrowser {
		if err := s.manager.Start(ctx); err != nil {
			rep.OK = false
			rep.Browser = err.Error()
		} else {
			rep.Browser = "ok"
		}
	}
	return rep
}

// stage advances the run and records the transition. Recording
// failures are logged, not fatal; the pipeline outranks its own
// bookkeeping.
func (s *Service) stage(ctx context.Context, run *store.Run, stage, detail string) {
	run.Stage = stage
	if err := s.store.RecordStage(ctx, run.ID, stage, detail); err != nil {
		s.logger.Warn("forge: stage record failed",
			"run_id", run.ID, "stage", stage, "error", err)
	}
}

// fail closes out a failed run. The run context may already be
// cancelled, so the final writes get their own deadline.
func (s *Service) fail(run *store.Run, err error) (*RunOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	failedAt := run.Stage
	run.Error = err.Error()
	run.Stage = store.StageFailed
	if rerr := s.store.RecordStage(ctx, run.ID, store.StageFailed, err.Error()); rerr != nil {
		s.logger.Warn("forge: failure record failed", "run_id", run.ID, "error", rerr)
	}
	if rerr := s.store.FinishRun(ctx, run); rerr != nil {
		s.logger.Warn("forge: run finish failed", "run_id", run.ID, "error", rerr)
	}
	s.logger.Error("forge: run failed",
		"run_id", run.ID, "stage", failedAt, "error", err)
	return &RunOutcome{Run: *run}, err
}

func (s *Service) finish(run *store.Run, stage string) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	run.Stage = stage
	run.Error = ""
	if err := s.store.RecordStage(ctx, run.ID, stage, ""); err != nil {
		s.logger.Warn("forge: stage record failed", "run_id", run.ID, "stage", stage, "error", err)
	}
	if err := s.store.FinishRun(ctx, run); err != nil {
		s.logger.Warn("forge: run finish failed", "run_id", run.ID, "error", err)
	}
}

func (s *Service) closePage(runID string, page *browser.Page) {
	if err := page.Close(); err != nil {
		s.logger.Warn("forge: page close failed", "run_id", runID, "error", err)
	}
}

func (s *Service) newPass(d strategy.Driver) *strategy.Pass {
	return &strategy.Pass{
		Driver:     d,
		Counter:    category.NewCounter(),
		Logger:     s.logger,
		MinResults: s.cfg.Extractor.MinResults,
		MaxBlocks:  s.cfg.Extractor.MaxNavBlocks,
		Settle:     time.Duration(s.cfg.Extractor.SettleMS) * time.Millisecond,
	}
}

// retailerName looks the retailer up for blueprint metadata. A missing
// row does not block extraction.
func (s *Service) retailerName(ctx context.Context, id int64) string {
	r, err := s.store.GetRetailer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("forge: retailer not registered", "retailer_id", id)
		} else {
			s.logger.Warn("forge: retailer lookup failed", "retailer_id", id, "error", err)
		}
		return ""
	}
	return r.Name
}

// finalize applies the safety caps, then normalizes, deduplicates and
// validates the tree. Parents precede children in production order and
// children are always deeper than their parents, so neither cap can
// orphan a kept category.
func (s *Service) finalize(cats []*category.Category, baseURL string) ([]*category.Category, error) {
	if maxDepth := s.cfg.Extractor.MaxDepth; maxDepth > 0 {
		kept := make([]*category.Category, 0, len(cats))
		for _, c := range cats {
			if c.Depth >= maxDepth {
				continue
			}
			kept = append(kept, c)
		}
		if dropped := len(cats) - len(kept); dropped > 0 {
			s.logger.Warn("forge: depth cap applied",
				"dropped", dropped, "max_depth", maxDepth)
		}
		cats = kept
	}
	if maxCats := s.cfg.Extractor.MaxCategories; maxCats > 0 && len(cats) > maxCats {
		s.logger.Warn("forge: category cap applied",
			"dropped", len(cats)-maxCats, "max_categories", maxCats)
		cats = cats[:maxCats]
	}

	final, err := category.Finalize(cats, baseURL)
	if err != nil {
		return nil, err
	}
	if len(final) == 0 {
		return nil, ErrNoCategories
	}
	return final, nil
}

func (s *Service) writeBlueprint(retailerID int64, retailerName, pageURL string, strat *strategy.NavigationStrategy, source strategy.Source, cats []*category.Category) (string, error) {
	bp, err := blueprint.Build(blueprint.Metadata{
		SiteURL:      pageURL,
		RetailerID:   retailerID,
		RetailerName: retailerName,
	}, strat, source, cats)
	if err != nil {
		return "", err
	}
	return blueprint.Save(s.cfg.Blueprints.Dir, bp)
}
