package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS message_flags (
	message_id TEXT PRIMARY KEY,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	starred    INTEGER NOT NULL DEFAULT 0 CHECK(starred IN (0, 1)),
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_message_flags_updated
	ON message_flags(updated_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
