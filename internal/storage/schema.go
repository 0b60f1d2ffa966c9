package storage

const schema = `
-- The 'kv' table holds one JSON document per collection ('cards', 'reviewLogs', 'sessions').
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`
