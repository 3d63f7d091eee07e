package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store handles SQLite database operations with async writes
type Store struct {
	db           *sql.DB
	path         string
	log          *zap.SugaredLogger
	writeChan    chan func(*sql.Tx) error
	healthStatus atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewStore creates a new storage instance with async writer
func NewStore(dataSourceName string, devMode bool, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode in development for better concurrency
	if devMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      dataSourceName,
		log:       log,
		writeChan: make(chan func(*sql.Tx) error, 1000), // Buffered for async writes
		ctx:       ctx,
		cancel:    cancel,
	}

	s.healthStatus.Store(true)

	// Start async writer
	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// writerLoop processes async write operations
func (s *Store) writerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain remaining writes with timeout
			deadline := time.After(2 * time.Second)
			for {
				select {
				case fn := <-s.writeChan:
					if s.healthStatus.Load() {
						s.executeWrite(fn)
					}
				case <-deadline:
					return
				default:
					return
				}
			}

		case fn := <-s.writeChan:
			// Skip if already degraded
			if !s.healthStatus.Load() {
				continue
			}
			s.executeWrite(fn)
		}
	}
}

// executeWrite runs a transactional write operation
func (s *Store) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.Errorw("storage degraded: failed to begin transaction", "error", err)
		s.healthStatus.Store(false)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		s.log.Errorw("storage degraded: write operation failed", "error", err)
		s.healthStatus.Store(false)
		return
	}

	if err := tx.Commit(); err != nil {
		s.log.Errorw("storage degraded: failed to commit", "error", err)
		s.healthStatus.Store(false)
		return
	}
}

// enqueue submits a write to the async channel, dropping it when the
// queue is full or the store is degraded. Persistence is best-effort:
// the game engine never blocks on the database.
func (s *Store) enqueue(what string, fn func(*sql.Tx) error) {
	if !s.healthStatus.Load() {
		return
	}

	select {
	case s.writeChan <- fn:
	default:
		s.log.Warnw("storage write queue full, dropping write", "what", what)
	}
}

// UpsertSnapshot asynchronously writes the latest session snapshot.
func (s *Store) UpsertSnapshot(record SessionRecord) {
	s.enqueue("session snapshot", func(tx *sql.Tx) error {
		query := `INSERT INTO sessions (
			session_id, initial_fen, current_fen, pgn, result, free_analysis, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_fen = excluded.current_fen,
			pgn = excluded.pgn,
			result = excluded.result,
			free_analysis = excluded.free_analysis,
			updated_at = excluded.updated_at`

		_, err := tx.Exec(query,
			record.SessionID, record.InitialFEN, record.CurrentFEN,
			record.PGN, record.Result, record.FreeAnalysis,
			record.CreatedAt, record.UpdatedAt,
		)
		return err
	})
}

// RecordMove asynchronously records a committed move
func (s *Store) RecordMove(record MoveRecord) {
	s.enqueue("move record", func(tx *sql.Tx) error {
		query := `INSERT INTO moves (
			session_id, ply, node_path, move_uci, move_san, fen_after, is_variation, played_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.SessionID, record.Ply, record.NodePath,
			record.MoveUCI, record.MoveSAN, record.FENAfter,
			record.IsVariation, record.PlayedAtUTC,
		)
		return err
	})
}

// DeleteSession asynchronously removes a session and, via the foreign
// key cascade, its moves.
func (s *Store) DeleteSession(sessionID string) {
	s.enqueue("session delete", func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
		return err
	})
}

// IsHealthy returns the current health status
func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load()
}

// Close gracefully closes the database connection
func (s *Store) Close() error {
	// Signal writer to stop
	s.cancel()

	// Wait for writer with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Writer finished cleanly
	case <-time.After(2 * time.Second):
		s.log.Warnw("storage writer shutdown timeout, some writes may be lost")
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitDB creates the database schema
func (s *Store) InitDB() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}

// DeleteDB removes the database file
func (s *Store) DeleteDB() error {
	// Close connection first
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}

	return nil
}

// QuerySessions retrieves session snapshots, optionally filtered by ID.
func (s *Store) QuerySessions(sessionID string) ([]SessionRecord, error) {
	query := `SELECT
		session_id, initial_fen, current_fen, pgn, result, free_analysis, created_at, updated_at
	FROM sessions WHERE 1=1`

	var args []interface{}

	if sessionID != "" && sessionID != "*" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	query += " ORDER BY updated_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var r SessionRecord
		err := rows.Scan(
			&r.SessionID, &r.InitialFEN, &r.CurrentFEN,
			&r.PGN, &r.Result, &r.FreeAnalysis,
			&r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		sessions = append(sessions, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return sessions, nil
}

// QueryMoves retrieves the recorded moves of a session in play order.
func (s *Store) QueryMoves(sessionID string) ([]MoveRecord, error) {
	query := `SELECT
		move_id, session_id, ply, node_path, move_uci, move_san, fen_after, is_variation, played_at_utc
	FROM moves WHERE session_id = ? ORDER BY move_id ASC`

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var moves []MoveRecord
	for rows.Next() {
		var r MoveRecord
		err := rows.Scan(
			&r.MoveID, &r.SessionID, &r.Ply, &r.NodePath,
			&r.MoveUCI, &r.MoveSAN, &r.FENAfter, &r.IsVariation,
			&r.PlayedAtUTC,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		moves = append(moves, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return moves, nil
}
