package observe

// SchemaVersion is the current state database schema version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS observe_state (
    rule_id INTEGER NOT NULL,
    location TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    first_seen INTEGER NOT NULL,
    last_seen INTEGER NOT NULL,
    PRIMARY KEY (rule_id, location)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const (
	selectEntries = `SELECT rule_id, location, fingerprint, first_seen, last_seen FROM observe_state;`
	deleteEntries = `DELETE FROM observe_state;`
	insertEntry   = `INSERT INTO observe_state (rule_id, location, fingerprint, first_seen, last_seen) VALUES (?, ?, ?, ?, ?);`
)
