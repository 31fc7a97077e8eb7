package sqlite

import "fmt"

const schema = `
-- Client settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Connection-state transitions
CREATE TABLE IF NOT EXISTS status_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    state TEXT NOT NULL,
    prev_state TEXT,
    source TEXT NOT NULL,
    message TEXT,
    recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_status_history_recorded_at ON status_history(recorded_at);

CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

const defaultData = `
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('api_base', 'http://127.0.0.1:6017/api'),
    ('poll_interval', '30s'),
    ('login_recheck_delay', '30s'),
    ('request_timeout', '10s'),
    ('log_level', 'info');
`

// schemaVersion is stored in PRAGMA user_version. Defaults are seeded only
// when a database is first brought up to it, so a deleted setting stays
// deleted.
const schemaVersion = 1

// runMigrations executes the database schema and, on a fresh database, the
// default data.
func runMigrations(db *DB) error {
	var version int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if _, err := db.db.Exec(schema); err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(defaultData); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
