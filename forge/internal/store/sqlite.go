package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AshleyColeman/templateForgeAi/dbopen"
	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// SQLite is the zero-setup local backend.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens the database at path, creating parent directories
// and applying the schema as needed. dbopen applies the production
// pragmas: foreign_keys ON, journal_mode WAL, busy_timeout 10000,
// synchronous NORMAL.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(sqliteSchema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Health(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store: health: %w", err)
	}
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"retailers", &c.Retailers},
		{"categories", &c.Categories},
		{"runs", &c.Runs},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("store: count %s: %w", q.table, err)
		}
	}
	return c, nil
}

func (s *SQLite) UpsertRetailer(ctx context.Context, r Retailer) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO retailers (id, name, base_url, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_url = excluded.base_url,
			enabled = excluded.enabled`,
		r.ID, r.Name, r.BaseURL, boolToInt(r.Enabled))
	if err != nil {
		return fmt.Errorf("store: upsert retailer %d: %w", r.ID, err)
	}
	return nil
}

func (s *SQLite) GetRetailer(ctx context.Context, id int64) (*Retailer, error) {
	var r Retailer
	var enabled int
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, base_url, enabled FROM retailers WHERE id = ?", id).
		Scan(&r.ID, &r.Name, &r.BaseURL, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: retailer %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get retailer %d: %w", id, err)
	}
	r.Enabled = enabled != 0
	return &r, nil
}

func (s *SQLite) SaveCategories(ctx context.Context, retailerID int64, cats []*category.Category) (SaveStats, error) {
	var stats SaveStats
	sorted := make([]*category.Category, len(cats))
	copy(sorted, cats)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Depth < sorted[j].Depth })

	s.logger.Info("store: saving categories", "retailer_id", retailerID, "count", len(sorted))

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		// RunTx retries the closure on SQLITE_BUSY, so reset per attempt.
		stats = SaveStats{}
		now := time.Now().Unix()
		idMap := make(map[int64]int64, len(sorted))
		for _, c := range sorted {
			if c.URL == "" {
				stats.Skipped++
				s.logger.Warn("store: skipping category without url", "name", c.Name)
				continue
			}
			// Parents sort first, so their database ids are already mapped.
			var dbParent any
			if c.ParentID != nil {
				if mapped, ok := idMap[*c.ParentID]; ok {
					dbParent = mapped
				}
			}

			var existing int64
			err := tx.QueryRowContext(ctx,
				"SELECT id FROM categories WHERE url = ? AND retailer_id = ?",
				c.URL, retailerID).Scan(&existing)
			switch {
			case err == nil:
				if _, err := tx.ExecContext(ctx,
					"UPDATE categories SET name = ?, parent_id = ?, depth = ?, enabled = 1 WHERE id = ?",
					c.Name, dbParent, c.Depth, existing); err != nil {
					stats.Errors++
					s.logger.Error("store: update category failed", "name", c.Name, "error", err)
					continue
				}
				idMap[c.ID] = existing
				stats.Updated++
			case errors.Is(err, sql.ErrNoRows):
				res, err := tx.ExecContext(ctx,
					"INSERT INTO categories (name, url, parent_id, retailer_id, depth, enabled, created_at) VALUES (?, ?, ?, ?, ?, 1, ?)",
					c.Name, c.URL, dbParent, retailerID, c.Depth, now)
				if err != nil {
					stats.Errors++
					s.logger.Error("store: insert category failed", "name", c.Name, "error", err)
					continue
				}
				id, err := res.LastInsertId()
				if err != nil {
					stats.Errors++
					s.logger.Error("store: insert id unavailable", "name", c.Name, "error", err)
					continue
				}
				idMap[c.ID] = id
				stats.Saved++
			default:
				stats.Errors++
				s.logger.Error("store: lookup category failed", "name", c.Name, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("store: save categories: %w", err)
	}
	s.logger.Info("store: save complete",
		"retailer_id", retailerID,
		"saved", stats.Saved, "updated", stats.Updated,
		"skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

func (s *SQLite) GetCategories(ctx context.Context, retailerID int64, enabledOnly bool) ([]SavedCategory, error) {
	query := "SELECT id, name, url, parent_id, depth, enabled, created_at FROM categories WHERE retailer_id = ?"
	if enabledOnly {
		query += " AND enabled = 1"
	}
	query += " ORDER BY depth, name"

	rows, err := s.db.QueryContext(ctx, query, retailerID)
	if err != nil {
		return nil, fmt.Errorf("store: get categories: %w", err)
	}
	defer rows.Close()

	var out []SavedCategory
	for rows.Next() {
		var sc SavedCategory
		var parent sql.NullInt64
		var enabled int
		var created int64
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.URL, &parent, &sc.Depth, &enabled, &created); err != nil {
			return nil, fmt.Errorf("store: scan category: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			sc.ParentID = &p
		}
		sc.Enabled = enabled != 0
		sc.CreatedAt = time.Unix(created, 0)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get categories: %w", err)
	}
	return out, nil
}

func (s *SQLite) DeleteCategories(ctx context.Context, retailerID int64) (int64, error) {
	var n int64
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		// Detach children first; the self-referencing foreign key is
		// checked per row.
		if _, err := tx.ExecContext(ctx,
			"UPDATE categories SET parent_id = NULL WHERE retailer_id = ?", retailerID); err != nil {
			return fmt.Errorf("detach: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM categories WHERE retailer_id = ?", retailerID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: delete categories: %w", err)
	}
	s.logger.Info("store: categories deleted", "retailer_id", retailerID, "count", n)
	return n, nil
}

const runColumns = "id, retailer_id, site_url, mode, driver, stage, source, categories, max_depth, confidence, blueprint_path, error, started_at, finished_at"

func (s *SQLite) CreateRun(ctx context.Context, run *Run) error {
	normalizeNewRun(run)
	_, err := dbopen.Exec(ctx, s.db,
		"INSERT INTO runs (id, retailer_id, site_url, mode, driver, stage, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.RetailerID, run.SiteURL, run.Mode, run.Driver, run.Stage, run.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: create run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLite) RecordStage(ctx context.Context, runID, stage, detail string) error {
	if _, err := dbopen.Exec(ctx, s.db,
		"UPDATE runs SET stage = ? WHERE id = ?", stage, runID); err != nil {
		return fmt.Errorf("store: record stage %s: %w", stage, err)
	}
	if _, err := dbopen.Exec(ctx, s.db,
		"INSERT INTO run_events (run_id, stage, detail, created_at) VALUES (?, ?, ?, ?)",
		runID, stage, detail, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record stage %s: %w", stage, err)
	}
	return nil
}

func (s *SQLite) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	_, err := dbopen.Exec(ctx, s.db, `
		UPDATE runs SET stage = ?, source = ?, categories = ?, max_depth = ?,
			confidence = ?, blueprint_path = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		run.Stage, run.Source, run.Categories, run.MaxDepth,
		run.Confidence, run.BlueprintPath, run.Error, run.FinishedAt.Unix(),
		run.ID)
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, []StageEvent, error) {
	run, err := scanRunRow(s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: get run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT stage, detail, created_at FROM run_events WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return nil, nil, fmt.Errorf("store: get run events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var ev StageEvent
		var created int64
		if err := rows.Scan(&ev.Stage, &ev.Detail, &created); err != nil {
			return nil, nil, fmt.Errorf("store: scan run event: %w", err)
		}
		ev.CreatedAt = time.Unix(created, 0)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: get run events: %w", err)
	}
	return &run, events, nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRow(sc rowScanner) (Run, error) {
	var r Run
	var started, finished int64
	err := sc.Scan(&r.ID, &r.RetailerID, &r.SiteURL, &r.Mode, &r.Driver,
		&r.Stage, &r.Source, &r.Categories, &r.MaxDepth, &r.Confidence,
		&r.BlueprintPath, &r.Error, &started, &finished)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(started, 0)
	if finished != 0 {
		r.FinishedAt = time.Unix(finished, 0)
	}
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
