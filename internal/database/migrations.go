package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS signals (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    actor TEXT NOT NULL,
    text TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    source_id TEXT UNIQUE NOT NULL,
    reply_to TEXT,
    metrics TEXT
);

CREATE TABLE IF NOT EXISTS classifications (
    signal_id TEXT PRIMARY KEY REFERENCES signals(id),
    intent_stage TEXT NOT NULL,
    primary_pain TEXT NOT NULL,
    urgency TEXT NOT NULL,
    confidence REAL NOT NULL,
    momentum_flag INTEGER DEFAULT 0,
    recommended_action TEXT
);

CREATE TABLE IF NOT EXISTS review_queue (
    signal_id TEXT PRIMARY KEY REFERENCES signals(id),
    status TEXT NOT NULL DEFAULT 'pending',
    reviewed_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outcomes (
    signal_id TEXT PRIMARY KEY REFERENCES signals(id),
    responded INTEGER NOT NULL,
    response_type TEXT NOT NULL,
    notes TEXT,
    logged_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
    signal_id TEXT PRIMARY KEY REFERENCES signals(id),
    rating TEXT NOT NULL CHECK(rating IN ('positive', 'negative')),
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signal_items (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    text TEXT NOT NULL,
    author TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    format TEXT NOT NULL,
    signal_type TEXT NOT NULL,
    priority_score REAL NOT NULL,
    severity_score REAL NOT NULL,
    recurrence_score REAL NOT NULL,
    business_weight REAL NOT NULL,
    account_tier TEXT NOT NULL,
    reasons TEXT,
    recommended_action TEXT
);

CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_signals_actor ON signals(actor);
CREATE INDEX IF NOT EXISTS idx_classifications_pain ON classifications(primary_pain);
CREATE INDEX IF NOT EXISTS idx_signal_items_priority ON signal_items(priority_score);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
