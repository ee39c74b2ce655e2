package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// Postgres is the shared catalog backend.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects a pool to databaseURL and applies the schema.
// IF NOT EXISTS keeps a pre-existing catalog's tables untouched.
func OpenPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	cfg.MinConns = 2
	cfg.MaxConns = 10
	cfg.ConnConfig.RuntimeParams["application_name"] = "forgeai"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	logger.Info("store: connected to postgres")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Health(ctx context.Context) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store: health: %w", err)
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"retailers", &c.Retailers},
		{"categories", &c.Categories},
		{"runs", &c.Runs},
	} {
		if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("store: count %s: %w", q.table, err)
		}
	}
	return c, nil
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("store: commit: %w", cerr)
		}
	}()
	err = fn(tx)
	return err
}

func (p *Postgres) UpsertRetailer(ctx context.Context, r Retailer) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO retailers (id, name, base_url, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			enabled = EXCLUDED.enabled`,
		r.ID, r.Name, r.BaseURL, r.Enabled)
	if err != nil {
		return fmt.Errorf("store: upsert retailer %d: %w", r.ID, err)
	}
	return nil
}

func (p *Postgres) GetRetailer(ctx context.Context, id int64) (*Retailer, error) {
	var r Retailer
	err := p.pool.QueryRow(ctx,
		"SELECT id, name, base_url, enabled FROM retailers WHERE id = $1", id).
		Scan(&r.ID, &r.Name, &r.BaseURL, &r.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: retailer %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get retailer %d: %w", id, err)
	}
	return &r, nil
}

func (p *Postgres) SaveCategories(ctx context.Context, retailerID int64, cats []*category.Category) (SaveStats, error) {
	var stats SaveStats
	sorted := make([]*category.Category, len(cats))
	copy(sorted, cats)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Depth < sorted[j].Depth })

	p.logger.Info("store: saving categories", "retailer_id", retailerID, "count", len(sorted))

	err := p.withTx(ctx, func(tx pgx.Tx) error {
		idMap := make(map[int64]int64, len(sorted))
		for _, c := range sorted {
			if c.URL == "" {
				stats.Skipped++
				p.logger.Warn("store: skipping category without url", "name", c.Name)
				continue
			}
			var dbParent any
			if c.ParentID != nil {
				if mapped, ok := idMap[*c.ParentID]; ok {
					dbParent = mapped
				}
			}

			var existing int64
			err := tx.QueryRow(ctx,
				"SELECT id FROM categories WHERE url = $1 AND retailer_id = $2",
				c.URL, retailerID).Scan(&existing)
			switch {
			case err == nil:
				if _, err := tx.Exec(ctx,
					"UPDATE categories SET name = $1, parent_id = $2, depth = $3, enabled = TRUE WHERE id = $4",
					c.Name, dbParent, c.Depth, existing); err != nil {
					stats.Errors++
					p.logger.Error("store: update category failed", "name", c.Name, "error", err)
					continue
				}
				idMap[c.ID] = existing
				stats.Updated++
			case errors.Is(err, pgx.ErrNoRows):
				var id int64
				if err := tx.QueryRow(ctx, `
					INSERT INTO categories (name, url, parent_id, retailer_id, depth, enabled, created_at)
					VALUES ($1, $2, $3, $4, $5, TRUE, $6)
					RETURNING id`,
					c.Name, c.URL, dbParent, retailerID, c.Depth, time.Now().UTC()).Scan(&id); err != nil {
					stats.Errors++
					p.logger.Error("store: insert category failed", "name", c.Name, "error", err)
					continue
				}
				idMap[c.ID] = id
				stats.Saved++
			default:
				stats.Errors++
				p.logger.Error("store: lookup category failed", "name", c.Name, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	p.logger.Info("store: save complete",
		"retailer_id", retailerID,
		"saved", stats.Saved, "updated", stats.Updated,
		"skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

func (p *Postgres) GetCategories(ctx context.Context, retailerID int64, enabledOnly bool) ([]SavedCategory, error) {
	query := "SELECT id, name, url, parent_id, depth, enabled, created_at FROM categories WHERE retailer_id = $1"
	if enabledOnly {
		query += " AND enabled = TRUE"
	}
	query += " ORDER BY depth, name"

	rows, err := p.pool.Query(ctx, query, retailerID)
	if err != nil {
		return nil, fmt.Errorf("store: get categories: %w", err)
	}
	defer rows.Close()

	var out []SavedCategory
	for rows.Next() {
		var sc SavedCategory
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.URL, &sc.ParentID, &sc.Depth, &sc.Enabled, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan category: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get categories: %w", err)
	}
	return out, nil
}

func (p *Postgres) DeleteCategories(ctx context.Context, retailerID int64) (int64, error) {
	var n int64
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"UPDATE categories SET parent_id = NULL WHERE retailer_id = $1", retailerID); err != nil {
			return fmt.Errorf("store: detach categories: %w", err)
		}
		tag, err := tx.Exec(ctx,
			"DELETE FROM categories WHERE retailer_id = $1", retailerID)
		if err != nil {
			return fmt.Errorf("store: delete categories: %w", err)
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.logger.Info("store: categories deleted", "retailer_id", retailerID, "count", n)
	return n, nil
}

func (p *Postgres) CreateRun(ctx context.Context, run *Run) error {
	normalizeNewRun(run)
	_, err := p.pool.Exec(ctx,
		"INSERT INTO runs (id, retailer_id, site_url, mode, driver, stage, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		run.ID, run.RetailerID, run.SiteURL, run.Mode, run.Driver, run.Stage, run.StartedAt)
	if err != nil {
		return fmt.Errorf("store: create run %s: %w", run.ID, err)
	}
	return nil
}

func (p *Postgres) RecordStage(ctx context.Context, runID, stage, detail string) error {
	if _, err := p.pool.Exec(ctx,
		"UPDATE runs SET stage = $1 WHERE id = $2", stage, runID); err != nil {
		return fmt.Errorf("store: record stage %s: %w", stage, err)
	}
	if _, err := p.pool.Exec(ctx,
		"INSERT INTO run_events (run_id, stage, detail, created_at) VALUES ($1, $2, $3, $4)",
		runID, stage, detail, time.Now()); err != nil {
		return fmt.Errorf("store: record stage %s: %w", stage, err)
	}
	return nil
}

func (p *Postgres) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE runs SET stage = $1, source = $2, categories = $3, max_depth = $4,
			confidence = $5, blueprint_path = $6, error = $7, finished_at = $8
		WHERE id = $9`,
		run.Stage, run.Source, run.Categories, run.MaxDepth,
		run.Confidence, run.BlueprintPath, run.Error, run.FinishedAt,
		run.ID)
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", run.ID, err)
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (*Run, []StageEvent, error) {
	var run Run
	var finished *time.Time
	err := p.pool.QueryRow(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = $1", id).
		Scan(&run.ID, &run.RetailerID, &run.SiteURL, &run.Mode, &run.Driver,
			&run.Stage, &run.Source, &run.Categories, &run.MaxDepth,
			&run.Confidence, &run.BlueprintPath, &run.Error, &run.StartedAt, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	if finished != nil {
		run.FinishedAt = *finished
	}

	rows, err := p.pool.Query(ctx,
		"SELECT stage, detail, created_at FROM run_events WHERE run_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, nil, fmt.Errorf("store: get run events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var ev StageEvent
		if err := rows.Scan(&ev.Stage, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("store: scan run event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: get run events: %w", err)
	}
	return &run, events, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var finished *time.Time
		if err := rows.Scan(&run.ID, &run.RetailerID, &run.SiteURL, &run.Mode, &run.Driver,
			&run.Stage, &run.Source, &run.Categories, &run.MaxDepth,
			&run.Confidence, &run.BlueprintPath, &run.Error, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if finished != nil {
			run.FinishedAt = *finished
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}
