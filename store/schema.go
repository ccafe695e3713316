package store

// schema is the additive, idempotent DDL applied on every Open. New
// columns/tables may be appended in later schema versions, but existing
// ones are never altered destructively (spec §6: "migrations are additive
// and idempotent").
//
// content_data is the last column of the content table so that metadata
// reads (list_content without blob loading) never scan payload bytes.
const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS content (
	id            TEXT PRIMARY KEY,
	content_type  INTEGER NOT NULL,
	name          TEXT NOT NULL,
	owner_id      INTEGER,
	owner_email   TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	synced_at     TEXT NOT NULL,
	deleted_at    TEXT,
	content_size  INTEGER NOT NULL,
	content_data  BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_type_active
	ON content(content_type) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_content_owner_active
	ON content(owner_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_content_updated_active
	ON content(updated_at DESC) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_content_deleted
	ON content(deleted_at) WHERE deleted_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS checkpoints (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT,
	content_type  INTEGER NOT NULL,
	state         TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	completed_at  TEXT,
	item_count    INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_type_completed
	ON checkpoints(content_type, completed_at);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session
	ON checkpoints(session_id);

CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	status         TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	completed_at   TEXT,
	items_processed INTEGER NOT NULL DEFAULT 0,
	error_count    INTEGER NOT NULL DEFAULT 0,
	config         TEXT,
	metadata       TEXT
);

CREATE TABLE IF NOT EXISTS id_mappings (
	content_type             INTEGER NOT NULL,
	source_id                TEXT NOT NULL,
	destination_id            TEXT NOT NULL,
	source_instance_url       TEXT NOT NULL,
	destination_instance_url  TEXT NOT NULL,
	created_at                TEXT NOT NULL,
	PRIMARY KEY (content_type, source_id, destination_instance_url)
);

CREATE TABLE IF NOT EXISTS dlq (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	content_type  INTEGER NOT NULL,
	content_id    TEXT NOT NULL,
	content_data  BLOB NOT NULL,
	error_type    TEXT NOT NULL,
	error_message TEXT NOT NULL,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	failed_at     TEXT NOT NULL,
	UNIQUE (session_id, content_id)
);
`
