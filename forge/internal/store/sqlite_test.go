package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AshleyColeman/templateForgeAi/dbopen"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *SQLite {
	t.Helper()
	return &SQLite{
		db:     dbopen.OpenMemory(t, dbopen.WithSchema(sqliteSchema)),
		logger: testLogger(),
	}
}

func TestUpsertRetailer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertRetailer(ctx, Retailer{ID: 7, Name: "Fresh Mart", BaseURL: "https://freshmart.example", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRetailer(ctx, Retailer{ID: 7, Name: "Fresh Mart ZA", BaseURL: "https://freshmart.example", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	r, err := s.GetRetailer(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "Fresh Mart ZA" {
		t.Fatalf("expected updated name, got %q", r.Name)
	}
	if !r.Enabled {
		t.Fatal("retailer should be enabled")
	}
}

func TestGetRetailer_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRetailer(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSaveCategories_InsertsAndTranslatesParents(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Child first in the input; the depth sort must still save the
	// parent first so the local parent id can be translated.
	cats := []*category.Category{
		{ID: 2, Name: "Milk", URL: "https://shop.example/c/dairy/milk", Depth: 1, ParentID: category.Ref(1)},
		{ID: 1, Name: "Dairy", URL: "https://shop.example/c/dairy", Depth: 0},
		{ID: 3, Name: "Bakery", URL: "https://shop.example/c/bakery", Depth: 0},
	}

	stats, err := s.SaveCategories(ctx, 7, cats)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Saved != 3 || stats.Updated != 0 || stats.Skipped != 0 || stats.Errors != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	saved, err := s.GetCategories(ctx, 7, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(saved))
	}

	byURL := make(map[string]SavedCategory, len(saved))
	for _, sc := range saved {
		byURL[sc.URL] = sc
	}
	dairy := byURL["https://shop.example/c/dairy"]
	milk := byURL["https://shop.example/c/dairy/milk"]
	if milk.ParentID == nil || *milk.ParentID != dairy.ID {
		t.Fatalf("milk parent should be dairy's database id %d, got %v", dairy.ID, milk.ParentID)
	}
	if dairy.ParentID != nil {
		t.Fatalf("dairy should have no parent, got %v", dairy.ParentID)
	}
}

func TestSaveCategories_UpdatesExistingByURL(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := []*category.Category{
		{ID: 1, Name: "Dairy", URL: "https://shop.example/c/dairy", Depth: 0},
	}
	if _, err := s.SaveCategories(ctx, 7, first); err != nil {
		t.Fatal(err)
	}

	second := []*category.Category{
		{ID: 1, Name: "Dairy & Eggs", URL: "https://shop.example/c/dairy", Depth: 0},
	}
	stats, err := s.SaveCategories(ctx, 7, second)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 || stats.Saved != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	saved, err := s.GetCategories(ctx, 7, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 {
		t.Fatalf("re-saving the same url should not add rows, got %d", len(saved))
	}
	if saved[0].Name != "Dairy & Eggs" {
		t.Fatalf("expected renamed category, got %q", saved[0].Name)
	}
}

func TestSaveCategories_SkipsMissingURL(t *testing.T) {
	s := testStore(t)

	stats, err := s.SaveCategories(context.Background(), 7, []*category.Category{
		{ID: 1, Name: "Dairy", URL: "https://shop.example/c/dairy", Depth: 0},
		{ID: 2, Name: "Broken", URL: "", Depth: 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Saved != 1 || stats.Skipped != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestSaveCategories_SameRetailerScope(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	cats := []*category.Category{
		{ID: 1, Name: "Dairy", URL: "https://shop.example/c/dairy", Depth: 0},
	}
	if _, err := s.SaveCategories(ctx, 7, cats); err != nil {
		t.Fatal(err)
	}
	// The same url under another retailer is a separate row.
	stats, err := s.SaveCategories(ctx, 8, cats)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Saved != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestDeleteCategories(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	cats := []*category.Category{
		{ID: 1, Name: "Dairy", URL: "https://shop.example/c/dairy", Depth: 0},
		{ID: 2, Name: "Milk", URL: "https://shop.example/c/dairy/milk", Depth: 1, ParentID: category.Ref(1)},
	}
	if _, err := s.SaveCategories(ctx, 7, cats); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteCategories(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	saved, err := s.GetCategories(ctx, 7, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 0 {
		t.Fatalf("expected no rows, got %d", len(saved))
	}
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &Run{ID: "run-1", RetailerID: 7, SiteURL: "https://shop.example"}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordStage(ctx, "run-1", StageAnalyze, "strategy proposed"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordStage(ctx, "run-1", StageExtract, "42 categories"); err != nil {
		t.Fatal(err)
	}

	run.Stage = StageDone
	run.Source = "ai"
	run.Categories = 42
	run.MaxDepth = 2
	run.Confidence = 0.8
	run.BlueprintPath = "blueprints/retailer_7_20260823_120000.json"
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, events, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != StageDone || got.Source != "ai" || got.Categories != 42 {
		t.Fatalf("run: %+v", got)
	}
	if got.Mode != ModeAI || got.Driver != DriverBrowser {
		t.Fatalf("mode/driver defaults: %q/%q", got.Mode, got.Driver)
	}
	if got.FinishedAt.IsZero() {
		t.Fatal("finished_at should be set")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Stage != StageAnalyze || events[1].Stage != StageExtract {
		t.Fatalf("events out of order: %+v", events)
	}
	if events[1].Detail != "42 categories" {
		t.Fatalf("detail: %q", events[1].Detail)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := testStore(t)
	_, _, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, started := range []time.Time{
		time.Unix(1000, 0), time.Unix(3000, 0), time.Unix(2000, 0),
	} {
		run := &Run{
			ID:         []string{"run-a", "run-b", "run-c"}[i],
			RetailerID: 7,
			SiteURL:    "https://shop.example",
			StartedAt:  started,
		}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-b" || runs[1].ID != "run-c" || runs[2].ID != "run-a" {
		t.Fatalf("order: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestCreateRun_ReplayMode(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &Run{
		ID:         "run-replay",
		RetailerID: 7,
		SiteURL:    "https://shop.example",
		Mode:       ModeReplay,
		Driver:     DriverStatic,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.GetRun(ctx, "run-replay")
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != ModeReplay || got.Driver != DriverStatic {
		t.Fatalf("mode/driver: %q/%q", got.Mode, got.Driver)
	}
}

func TestListRuns_Limit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := &Run{
			ID:         string(rune('a' + i)),
			RetailerID: 7,
			SiteURL:    "https://shop.example",
			StartedAt:  time.Unix(int64(1000+i), 0),
		}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestHealth(t *testing.T) {
	s := testStore(t)
	if err := s.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertRetailer(ctx, Retailer{ID: 7, Name: "Fresh Mart", Enabled: true}); err != nil {
		t.Fatal(err)
	}
	cats := []*category.Category{
		{ID: 1, Name: "Dairy", URL: "https://shop.example/c/dairy", Depth: 0},
		{ID: 2, Name: "Bakery", URL: "https://shop.example/c/bakery", Depth: 0},
	}
	if _, err := s.SaveCategories(ctx, 7, cats); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRun(ctx, &Run{ID: "run-1", RetailerID: 7, SiteURL: "https://shop.example"}); err != nil {
		t.Fatal(err)
	}

	counts, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Retailers != 1 || counts.Categories != 2 || counts.Runs != 1 {
		t.Fatalf("counts: %+v", counts)
	}
}
