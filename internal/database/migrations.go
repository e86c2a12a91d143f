package database

// The unique indexes on integration_accounts are the actual source of truth
// for exclusivity: the availability pre-checks performed by the integrations
// are advisory only, and a race between two creates is resolved here. Deleted
// rows are excluded so an identifier becomes reusable after a soft delete.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL DEFAULT 'user',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS integration_accounts (
    id TEXT PRIMARY KEY,
    integration TEXT NOT NULL,
    user_id INTEGER NOT NULL REFERENCES users(id),
    identifier TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_live_user
    ON integration_accounts(integration, user_id) WHERE status != 'deleted';
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_live_identifier
    ON integration_accounts(integration, identifier) WHERE status != 'deleted';
CREATE INDEX IF NOT EXISTS idx_accounts_user ON integration_accounts(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
