package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(path, true, zap.NewNop().Sugar())
	require.NoError(t, err)
	return s
}

// TestStoreWriteAndReload round-trips snapshots and moves through the
// async writer: writes enqueued before Close are drained to disk and
// visible to a fresh store on the same file.
func TestStoreWriteAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chesskit.db")

	s := openStore(t, path)
	require.NoError(t, s.InitDB())
	require.True(t, s.IsHealthy())

	now := time.Now().UTC()
	s.UpsertSnapshot(SessionRecord{
		SessionID:  "abc",
		InitialFEN: "start",
		CurrentFEN: "start",
		Result:     "*",
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	s.RecordMove(MoveRecord{
		SessionID:   "abc",
		Ply:         1,
		NodePath:    "0",
		MoveUCI:     "e2e4",
		MoveSAN:     "e4",
		FENAfter:    "after-e4",
		PlayedAtUTC: now,
	})
	s.RecordMove(MoveRecord{
		SessionID:   "abc",
		Ply:         2,
		NodePath:    "0.0",
		MoveUCI:     "e7e5",
		MoveSAN:     "e5",
		FENAfter:    "after-e5",
		IsVariation: false,
		PlayedAtUTC: now,
	})
	// Snapshot upsert overwrites the mutable columns
	s.UpsertSnapshot(SessionRecord{
		SessionID:  "abc",
		InitialFEN: "ignored on conflict",
		CurrentFEN: "after-e5",
		PGN:        "1. e4 e5 *",
		Result:     "*",
		CreatedAt:  now,
		UpdatedAt:  now.Add(time.Second),
	})
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()

	sessions, err := s.QuerySessions("abc")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "start", sessions[0].InitialFEN)
	require.Equal(t, "after-e5", sessions[0].CurrentFEN)
	require.Equal(t, "1. e4 e5 *", sessions[0].PGN)

	moves, err := s.QueryMoves("abc")
	require.NoError(t, err)
	require.Len(t, moves, 2)
	require.Equal(t, "e2e4", moves[0].MoveUCI)
	require.Equal(t, "0", moves[0].NodePath)
	require.Equal(t, "e7e5", moves[1].MoveUCI)
	require.True(t, moves[0].MoveID < moves[1].MoveID)
}

func TestStoreDeleteSessionCascades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chesskit.db")

	s := openStore(t, path)
	require.NoError(t, s.InitDB())

	now := time.Now().UTC()
	s.UpsertSnapshot(SessionRecord{
		SessionID: "gone", InitialFEN: "f", CurrentFEN: "f",
		Result: "*", CreatedAt: now, UpdatedAt: now,
	})
	s.RecordMove(MoveRecord{
		SessionID: "gone", Ply: 1, NodePath: "0",
		MoveUCI: "e2e4", MoveSAN: "e4", FENAfter: "f2", PlayedAtUTC: now,
	})
	s.DeleteSession("gone")
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()

	sessions, err := s.QuerySessions("gone")
	require.NoError(t, err)
	require.Empty(t, sessions)

	// Foreign key cascade removes the move rows too
	moves, err := s.QueryMoves("gone")
	require.NoError(t, err)
	require.Empty(t, moves)
}

func TestStoreQueryFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chesskit.db")

	s := openStore(t, path)
	defer s.Close()
	require.NoError(t, s.InitDB())

	now := time.Now().UTC()
	s.UpsertSnapshot(SessionRecord{
		SessionID: "one", InitialFEN: "f", CurrentFEN: "f",
		Result: "*", CreatedAt: now, UpdatedAt: now,
	})
	s.UpsertSnapshot(SessionRecord{
		SessionID: "two", InitialFEN: "f", CurrentFEN: "f",
		Result: "*", CreatedAt: now, UpdatedAt: now.Add(time.Second),
	})

	// Writes are async: wait for both rows to land
	require.Eventually(t, func() bool {
		all, err := s.QuerySessions("*")
		return err == nil && len(all) == 2
	}, 2*time.Second, 20*time.Millisecond)

	one, err := s.QuerySessions("one")
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, "one", one[0].SessionID)

	all, err := s.QuerySessions("*")
	require.NoError(t, err)
	require.Equal(t, "two", all[0].SessionID) // newest first
}
