package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chesskit/internal/board"
	"chesskit/internal/core"
	"chesskit/internal/position"
	"chesskit/internal/tree"
)

func newCoordinator(t *testing.T, fen string) *Coordinator {
	t.Helper()
	return New(nil, position.NewEngine(nil), fen)
}

// collect subscribes to the coordinator and records every event.
func collect(t *testing.T, c *Coordinator) *[]core.Event {
	t.Helper()
	events := &[]core.Event{}
	sub := c.Events().Subscribe(func(ev core.Event) {
		*events = append(*events, ev)
	})
	t.Cleanup(sub.Unsubscribe)
	return events
}

func TestNewFallsBackOnInvalidFEN(t *testing.T) {
	c := newCoordinator(t, "definitely not a fen")
	require.Equal(t, board.StartingFEN, c.FEN())

	c = newCoordinator(t, "")
	require.Equal(t, board.StartingFEN, c.FEN())
}

func TestAttemptMoveCommits(t *testing.T) {
	c := newCoordinator(t, "")
	events := collect(t, c)

	out := c.AttemptMove("e2", "e4")
	require.True(t, out.Committed)
	require.Equal(t, "e4", out.SAN)
	require.Equal(t, "e2e4", out.UCI)
	require.Equal(t, "0", out.Path)
	require.False(t, out.IsVariation)
	require.Equal(t, 1, c.Ply())
	require.Contains(t, c.FEN(), "4P3")

	require.Len(t, *events, 1)
	made, ok := (*events)[0].(core.MoveMade)
	require.True(t, ok)
	require.Equal(t, "e4", made.SANMove)
	require.Equal(t, c.FEN(), made.NewFEN)
}

func TestAttemptMoveIllegal(t *testing.T) {
	c := newCoordinator(t, "")
	events := collect(t, c)
	before := c.FEN()

	out := c.AttemptMove("e2", "e5")
	require.True(t, out.IsIllegal)
	require.False(t, out.Committed)

	// Rejection leaves everything untouched
	require.Equal(t, before, c.FEN())
	require.Equal(t, 0, c.Ply())
	require.Empty(t, *events)
}

func TestReplayedMoveDeduplicates(t *testing.T) {
	c := newCoordinator(t, "")

	first := c.AttemptMove("e2", "e4")
	require.True(t, first.Committed)

	require.True(t, c.NavigateBackward())
	replay := c.AttemptMove("e2", "e4")
	require.True(t, replay.Committed)
	require.False(t, replay.IsVariation)
	require.Equal(t, first.Path, replay.Path)
	require.Len(t, c.Siblings(), 1, "replaying must not branch")
}

func TestVariationCreation(t *testing.T) {
	c := newCoordinator(t, "")

	require.True(t, c.AttemptMove("e2", "e4").Committed)
	require.True(t, c.NavigateBackward())

	out := c.AttemptMove("d2", "d4")
	require.True(t, out.Committed)
	require.True(t, out.IsVariation)
	require.Equal(t, "1", out.Path)
	require.Len(t, c.Siblings(), 2)
}

func TestPromotionSuspendsAndResumes(t *testing.T) {
	c := newCoordinator(t, "8/4P1k1/8/8/8/8/8/4K3 w - - 0 1")
	events := collect(t, c)

	out := c.AttemptMove("e7", "e8")
	require.True(t, out.AwaitingPromotion)
	require.False(t, out.Committed)
	require.Equal(t, StateAwaitingPromotionChoice, c.State())
	require.Empty(t, *events, "nothing committed yet")

	// Any other move intent is rejected while suspended
	blocked := c.AttemptMove("e1", "e2")
	require.True(t, blocked.IsIllegal)
	blocked = c.ApplySystemMove("e1e2")
	require.True(t, blocked.IsIllegal)

	resolved, err := c.ChoosePromotion(core.PromoteQueen)
	require.NoError(t, err)
	require.True(t, resolved.Committed)
	require.Equal(t, "e7e8q", resolved.UCI)
	require.Equal(t, StateReady, c.State())
	require.Contains(t, c.FEN(), "4Q")
	require.Len(t, *events, 1)
}

func TestPromotionCancelRestoresReady(t *testing.T) {
	c := newCoordinator(t, "8/4P1k1/8/8/8/8/8/4K3 w - - 0 1")
	before := c.FEN()

	out := c.AttemptMove("e7", "e8")
	require.True(t, out.AwaitingPromotion)

	cancelled, err := c.CancelPromotion()
	require.NoError(t, err)
	require.True(t, cancelled.PromotionCancelled)
	require.Equal(t, StateReady, c.State())
	require.Equal(t, before, c.FEN())
	require.Equal(t, 0, c.Ply())

	// The move can be retried
	retry := c.AttemptMove("e7", "e8")
	require.True(t, retry.AwaitingPromotion)
	resolved, err := c.ChoosePromotion(core.PromoteKnight)
	require.NoError(t, err)
	require.Equal(t, "e7e8n", resolved.UCI)
}

func TestPromotionResolveWithoutPending(t *testing.T) {
	c := newCoordinator(t, "")

	_, err := c.ChoosePromotion(core.PromoteQueen)
	require.ErrorIs(t, err, ErrNoPromotion)
	_, err = c.CancelPromotion()
	require.ErrorIs(t, err, ErrNoPromotion)
}

func TestSystemMovePromotion(t *testing.T) {
	c := newCoordinator(t, "8/4P1k1/8/8/8/8/8/4K3 w - - 0 1")

	out := c.ApplySystemMove("e7e8r")
	require.True(t, out.Committed)
	require.Equal(t, StateReady, c.State(), "system moves never suspend")
	require.Contains(t, c.FEN(), "4R")
}

func TestCheckmateStatus(t *testing.T) {
	// Fool's mate final position
	c := newCoordinator(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	st := c.Status()
	require.True(t, st.IsGameOver)
	require.NotNil(t, st.Outcome)
	require.Equal(t, core.ReasonCheckmate, st.Outcome.Reason)
	require.Equal(t, "b", st.Outcome.Winner)
	require.True(t, st.IsCheck)
}

func TestGameOverBlocksMoves(t *testing.T) {
	// Fifty-move draw with legal moves still on the board
	c := newCoordinator(t, "8/8/4k3/8/8/4K3/4R3/8 w - - 100 80")

	st := c.Status()
	require.True(t, st.IsGameOver)
	require.Equal(t, core.ReasonFiftyMoveRule, st.Outcome.Reason)
	require.Empty(t, st.Outcome.Winner)

	out := c.AttemptMove("e3", "d3")
	require.True(t, out.IsIllegal, "finished games reject moves")

	// Free analysis lifts the gate but keeps legality
	c.SetFreeAnalysis(true)
	require.True(t, c.AttemptMove("e3", "d3").Committed)
	require.True(t, c.AttemptMove("e3", "e5").IsIllegal)
}

func TestStalemateStatus(t *testing.T) {
	c := newCoordinator(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")

	st := c.Status()
	require.True(t, st.IsGameOver)
	require.Equal(t, core.ReasonStalemate, st.Outcome.Reason)
	require.Empty(t, st.Outcome.Winner)
	require.False(t, st.IsCheck)
}

func TestThreefoldRepetition(t *testing.T) {
	c := newCoordinator(t, "")

	shuffle := [][2]string{
		{"g1", "f3"}, {"g8", "f6"}, {"f3", "g1"}, {"f6", "g8"},
	}
	for round := 0; round < 2; round++ {
		for _, mv := range shuffle {
			out := c.AttemptMove(mv[0], mv[1])
			require.True(t, out.Committed)
		}
	}

	st := c.Status()
	require.True(t, st.IsGameOver)
	require.Equal(t, core.ReasonThreefoldRepetition, st.Outcome.Reason)
	require.Equal(t, core.ResultDraw, c.Result())
}

func TestStatusFollowsNavigation(t *testing.T) {
	// Game over at the end of the line, ongoing when stepped back
	c := newCoordinator(t, "rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq - 0 2")

	out := c.AttemptMove("d8", "h4")
	require.True(t, out.Committed)
	require.True(t, c.Status().IsGameOver)

	require.True(t, c.NavigateBackward())
	require.False(t, c.Status().IsGameOver, "status is derived from the cursor position")

	require.True(t, c.NavigateForward(0))
	require.True(t, c.Status().IsGameOver)
}

func TestNavigationAndPGN(t *testing.T) {
	c := newCoordinator(t, "")
	events := collect(t, c)

	require.True(t, c.AttemptMove("e2", "e4").Committed)
	require.True(t, c.AttemptMove("e7", "e5").Committed)
	require.True(t, c.AttemptMove("g1", "f3").Committed)

	require.Equal(t, 3, c.Ply())
	require.Equal(t, "1. e4 e5 2. Nf3", c.PGN(tree.PGNOptions{}))

	require.True(t, c.NavigateToStart())
	require.Equal(t, 0, c.Ply())
	require.True(t, c.CanNavigateForward())
	require.False(t, c.CanNavigateBackward())

	require.True(t, c.NavigateToEnd())
	require.Equal(t, 3, c.Ply())

	// 3 MoveMade + 2 PgnNavigated
	require.Len(t, *events, 5)
	nav, ok := (*events)[3].(core.PgnNavigated)
	require.True(t, ok)
	require.Equal(t, 0, nav.Ply)
}

func TestUndoLastMove(t *testing.T) {
	c := newCoordinator(t, "")

	require.True(t, c.AttemptMove("e2", "e4").Committed)
	require.True(t, c.AttemptMove("e7", "e5").Committed)

	require.NoError(t, c.UndoLastMove())
	require.Equal(t, 1, c.Ply())
	require.False(t, c.CanNavigateForward(), "undo discards the subtree")

	// A different reply is now the only child
	out := c.AttemptMove("c7", "c5")
	require.True(t, out.Committed)
	require.False(t, out.IsVariation)

	c2 := newCoordinator(t, "")
	require.ErrorIs(t, c2.UndoLastMove(), tree.ErrAtRoot)
}

func TestPromoteVariationChangesMainline(t *testing.T) {
	c := newCoordinator(t, "")

	require.True(t, c.AttemptMove("e2", "e4").Committed)
	require.True(t, c.NavigateBackward())
	out := c.AttemptMove("d2", "d4")
	require.True(t, out.IsVariation)

	siblings := c.Siblings()
	require.Len(t, siblings, 2)
	d4 := siblings[1]
	require.Equal(t, "d2d4", d4.UCI)

	require.NoError(t, c.PromoteVariation(d4.ID))
	require.Equal(t, "0", c.Path(), "promoted line is now the mainline")
	require.Equal(t, "1. d4 (1. e4)", c.PGN(tree.PGNOptions{ShowVariations: true}))
}

func TestResetPublishesAndClears(t *testing.T) {
	c := newCoordinator(t, "")
	require.True(t, c.AttemptMove("e2", "e4").Committed)

	events := collect(t, c)
	c.Reset("")
	require.Equal(t, board.StartingFEN, c.FEN())
	require.Equal(t, 0, c.Ply())
	require.Len(t, *events, 1)
	_, ok := (*events)[0].(core.PgnNavigated)
	require.True(t, ok)
}

func TestSetResultSticks(t *testing.T) {
	c := newCoordinator(t, "")
	require.Equal(t, core.ResultOngoing, c.Result())

	c.SetResult(core.ResultDraw)
	require.Equal(t, core.ResultDraw, c.Result())

	// A manual result records intent but does not gate play
	require.True(t, c.AttemptMove("e2", "e4").Committed)
}
