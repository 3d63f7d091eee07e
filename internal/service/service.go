// Package service owns the session registry: it maps session IDs to
// live coordinators, fans coordinator events out to long-poll waiters
// and best-effort persistence, and reaps idle sessions.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chesskit/internal/core"
	"chesskit/internal/position"
	"chesskit/internal/session"
	"chesskit/internal/storage"
	"chesskit/internal/tree"
)

// Session pairs a coordinator with its registry bookkeeping. Seq is a
// monotonically increasing event counter used by long-poll clients to
// detect changes.
type Session struct {
	ID        string
	Coord     *session.Coordinator
	CreatedAt time.Time

	seq        atomic.Int64
	lastActive atomic.Int64 // unix nanos
	sub        *session.Subscription
}

// Seq returns the current event sequence number.
func (s *Session) Seq() int64 {
	return s.seq.Load()
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Service is a pure state manager for game sessions with optional
// persistence.
type Service struct {
	mu       sync.RWMutex
	log      *zap.SugaredLogger
	engine   *position.Engine
	sessions map[string]*Session
	store    *storage.Store // nil if persistence disabled
	waiter   *WaitRegistry
}

// New creates a new service instance with optional storage
func New(log *zap.SugaredLogger, engine *position.Engine, store *storage.Store) *Service {
	return &Service{
		log:      log,
		engine:   engine,
		sessions: make(map[string]*Session),
		store:    store,
		waiter:   NewWaitRegistry(),
	}
}

// Waiter exposes the long-poll registry to the transport layer.
func (s *Service) Waiter() *WaitRegistry {
	return s.waiter
}

// CreateSession builds a coordinator for the given FEN and registers
// it under a fresh UUID. A malformed FEN is not an error: the
// coordinator falls back to the starting position.
func (s *Service) CreateSession(fen string, freeAnalysis bool) *Session {
	coord := session.New(s.log, s.engine, fen)
	coord.SetFreeAnalysis(freeAnalysis)

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		id = uuid.New().String()
		if _, exists := s.sessions[id]; !exists {
			break
		}
	}

	sess := &Session{
		ID:        id,
		Coord:     coord,
		CreatedAt: time.Now().UTC(),
	}
	sess.touch()
	initialFEN := coord.FEN()

	sess.sub = coord.Events().Subscribe(func(ev core.Event) {
		seq := sess.seq.Add(1)
		sess.touch()
		s.waiter.NotifySession(id, seq)
		s.persist(sess, initialFEN, ev)
	})

	s.sessions[id] = sess

	if s.store != nil {
		now := time.Now().UTC()
		s.store.UpsertSnapshot(storage.SessionRecord{
			SessionID:    id,
			InitialFEN:   initialFEN,
			CurrentFEN:   initialFEN,
			Result:       string(core.ResultOngoing),
			FreeAnalysis: freeAnalysis,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	return sess
}

// persist writes the session snapshot, plus a move row for committed
// moves. Runs on the event path; storage writes are async and never
// block the coordinator.
func (s *Service) persist(sess *Session, initialFEN string, ev core.Event) {
	if s.store == nil {
		return
	}

	now := time.Now().UTC()
	coord := sess.Coord
	s.store.UpsertSnapshot(storage.SessionRecord{
		SessionID:    sess.ID,
		InitialFEN:   initialFEN,
		CurrentFEN:   coord.FEN(),
		PGN:          coord.PGN(tree.PGNOptions{ShowResult: true, ShowVariations: true}),
		Result:       string(coord.Result()),
		FreeAnalysis: coord.FreeAnalysis(),
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    now,
	})

	if made, ok := ev.(core.MoveMade); ok {
		s.store.RecordMove(storage.MoveRecord{
			SessionID:   sess.ID,
			Ply:         coord.Ply(),
			NodePath:    made.NewNodePath,
			MoveUCI:     made.UCIMove,
			MoveSAN:     made.SANMove,
			FENAfter:    made.NewFEN,
			IsVariation: made.IsVariation,
			PlayedAtUTC: now,
		})
	}
}

// GetSession retrieves a session by ID and marks it active.
func (s *Service) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	sess.touch()
	return sess, nil
}

// DeleteSession removes a session from memory and wakes its waiters.
func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.sub.Unsubscribe()
	s.waiter.RemoveSession(id)

	if s.store != nil {
		s.store.DeleteSession(id)
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunCleanupJob reaps sessions idle for longer than ttl. Blocks until
// ctx is cancelled; run it on its own goroutine.
func (s *Service) RunCleanupJob(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-ttl)

			s.mu.RLock()
			var stale []string
			for id, sess := range s.sessions {
				if sess.idleSince().Before(cutoff) {
					stale = append(stale, id)
				}
			}
			s.mu.RUnlock()

			for _, id := range stale {
				if err := s.DeleteSession(id); err == nil {
					s.log.Infow("reaped idle session", "sessionId", id)
				}
			}
		}
	}
}

// StorageHealth returns the storage component status
func (s *Service) StorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// Shutdown stops the waiter registry and closes storage.
func (s *Service) Shutdown(timeout time.Duration) error {
	if err := s.waiter.Shutdown(timeout); err != nil {
		s.log.Warnw("wait registry shutdown", "error", err)
	}

	s.mu.Lock()
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
