package store

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	daily_limit          INTEGER NOT NULL,
	weekly_limit         INTEGER NOT NULL,
	cooldown_min_ms      INTEGER NOT NULL,
	cooldown_max_ms      INTEGER NOT NULL,
	business_hours_only  INTEGER NOT NULL,
	business_hours_start INTEGER NOT NULL,
	business_hours_end   INTEGER NOT NULL,
	warmup_enabled       INTEGER NOT NULL,
	warmup_day           INTEGER NOT NULL,
	last_warmup_date     TEXT NOT NULL DEFAULT '',
	dry_run              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	sent       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date    TEXT PRIMARY KEY,
	sent    INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	errors  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS weekly_stats (
	week_start TEXT PRIMARY KEY,
	sent       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
	profile_key  TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	headline     TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	message_sent TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	sent_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_log (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	type       TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_queue (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint  TEXT NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	queued_at TEXT NOT NULL
);
`
