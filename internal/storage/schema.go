package storage

import "time"

// SessionRecord represents a row in the sessions table. The snapshot
// columns (current_fen, pgn, result) are overwritten on every change
// so a restarted server can rehydrate the latest state without
// replaying moves.
type SessionRecord struct {
	SessionID    string    `db:"session_id"`
	InitialFEN   string    `db:"initial_fen"`
	CurrentFEN   string    `db:"current_fen"`
	PGN          string    `db:"pgn"`
	Result       string    `db:"result"`
	FreeAnalysis bool      `db:"free_analysis"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// MoveRecord represents a row in the moves table: one committed move,
// identified by its tree path so variations survive a round trip.
type MoveRecord struct {
	MoveID      int64     `db:"move_id"`
	SessionID   string    `db:"session_id"`
	Ply         int       `db:"ply"`
	NodePath    string    `db:"node_path"`
	MoveUCI     string    `db:"move_uci"`
	MoveSAN     string    `db:"move_san"`
	FENAfter    string    `db:"fen_after"`
	IsVariation bool      `db:"is_variation"`
	PlayedAtUTC time.Time `db:"played_at_utc"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	initial_fen TEXT NOT NULL,
	current_fen TEXT NOT NULL,
	pgn TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL DEFAULT '*',
	free_analysis INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS moves (
	move_id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	ply INTEGER NOT NULL,
	node_path TEXT NOT NULL,
	move_uci TEXT NOT NULL,
	move_san TEXT NOT NULL,
	fen_after TEXT NOT NULL,
	is_variation INTEGER NOT NULL DEFAULT 0,
	played_at_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_moves_session_id ON moves(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`
