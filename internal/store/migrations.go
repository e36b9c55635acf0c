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

CREATE TABLE IF NOT EXISTS tasks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_type  TEXT NOT NULL DEFAULT '',
	owner_email   TEXT NOT NULL DEFAULT '',
	assigned_dept TEXT NOT NULL DEFAULT 'IT',
	time_required TEXT NOT NULL DEFAULT '',
	priority      TEXT NOT NULL DEFAULT 'MEDIUM',
	status        TEXT NOT NULL DEFAULT 'pending',
	summary       TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_updates (
	id          TEXT PRIMARY KEY,
	task_id     INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	message     TEXT NOT NULL,
	author      TEXT NOT NULL DEFAULT '',
	update_type TEXT NOT NULL CHECK(update_type IN ('reply', 'sender')),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_assigned_dept ON tasks(assigned_dept);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_email ON tasks(owner_email);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
CREATE INDEX IF NOT EXISTS idx_task_updates_task_id ON task_updates(task_id);
CREATE INDEX IF NOT EXISTS idx_task_updates_created ON task_updates(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
