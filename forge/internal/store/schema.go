package store

// SQLite schema. Timestamps are unix seconds.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS retailers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		parent_id INTEGER REFERENCES categories(id),
		retailer_id INTEGER NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		UNIQUE (url, retailer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_categories_retailer ON categories(retailer_id);
	CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories(parent_id);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		retailer_id INTEGER NOT NULL,
		site_url TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT 'ai',
		driver TEXT NOT NULL DEFAULT 'browser',
		stage TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		categories INTEGER NOT NULL DEFAULT 0,
		max_depth INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		blueprint_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_retailer ON runs(retailer_id, started_at);

	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		stage TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
`

// PostgreSQL schema. Applied with IF NOT EXISTS so a pre-existing
// catalog database keeps its own retailers and categories tables.
const postgresSchema = `
	CREATE TABLE IF NOT EXISTS retailers (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		parent_id BIGINT REFERENCES categories(id),
		retailer_id BIGINT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (url, retailer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_categories_retailer ON categories(retailer_id);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		retailer_id BIGINT NOT NULL,
		site_url TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT 'ai',
		driver TEXT NOT NULL DEFAULT 'browser',
		stage TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		categories INTEGER NOT NULL DEFAULT 0,
		max_depth INTEGER NOT NULL DEFAULT 0,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		blueprint_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_runs_retailer ON runs(retailer_id, started_at);

	CREATE TABLE IF NOT EXISTS run_events (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		stage TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
`
