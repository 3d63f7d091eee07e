package tree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chesskit/internal/board"
	"chesskit/internal/core"
)

// chain adds a sequence of moves from the cursor, fabricating position
// strings so every move continues the previous one.
func chain(t *testing.T, tr *Tree, sans ...string) []Node {
	t.Helper()
	var nodes []Node
	for _, san := range sans {
		before := tr.CurrentFEN()
		n, err := tr.AddNode(MoveData{
			SAN:       san,
			UCI:       "uci-" + san,
			FENBefore: before,
			FENAfter:  "pos-" + san,
		})
		require.NoError(t, err)
		nodes = append(nodes, n)
	}
	return nodes
}

func TestAddNodeAdvancesCursor(t *testing.T) {
	tr := New("start 7 8")

	n, err := tr.AddNode(MoveData{SAN: "e4", UCI: "e2e4", FENBefore: "start 7 8", FENAfter: "after-e4"})
	require.NoError(t, err)
	require.Equal(t, NodeID(1), n.ID)
	require.Equal(t, n.ID, tr.Cursor().ID)
	require.Equal(t, "after-e4", tr.CurrentFEN())
	require.Equal(t, 1, tr.Ply())
}

func TestAddNodeDesync(t *testing.T) {
	tr := New("start 7 8")

	_, err := tr.AddNode(MoveData{SAN: "e4", UCI: "e2e4", FENBefore: "some other position", FENAfter: "x"})
	require.ErrorIs(t, err, ErrDesync)

	// Nothing changed
	require.Equal(t, RootID, tr.Cursor().ID)
	require.Equal(t, "start 7 8", tr.CurrentFEN())
}

func TestAddNodeDeduplicates(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4")

	// Step back and replay the same move
	require.True(t, tr.NavigateBackward())
	n, err := tr.AddNode(MoveData{SAN: "e4", UCI: "uci-e4", FENBefore: "start", FENAfter: "pos-e4"})
	require.NoError(t, err)

	require.Equal(t, NodeID(1), n.ID, "replaying a known move must reuse the node")
	require.Len(t, tr.Cursor().Children, 0)
	root, ok := tr.NodeByID(RootID)
	require.True(t, ok)
	require.Len(t, root.Children, 1)
}

func TestVariationBranching(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4")

	require.True(t, tr.NavigateBackward())
	n, err := tr.AddNode(MoveData{SAN: "d4", UCI: "uci-d4", FENBefore: "start", FENAfter: "pos-d4"})
	require.NoError(t, err)

	require.Equal(t, 1, tr.SiblingIndex(n.ID), "second child is a variation")
	require.Equal(t, Path{1}, tr.CurrentPath())

	sibs := tr.Siblings()
	require.Len(t, sibs, 2)
	require.Equal(t, "e4", sibs[0].SAN)
	require.Equal(t, "d4", sibs[1].SAN)
}

func TestUndoDetachesSubtree(t *testing.T) {
	tr := New("start")
	nodes := chain(t, tr, "e4", "e5", "Nf3")

	// Undo from the middle of the line removes Nf3 too
	require.True(t, tr.NavigateBackward())
	require.NoError(t, tr.UndoLastMove())

	require.Equal(t, nodes[0].ID, tr.Cursor().ID)
	_, ok := tr.NodeByID(nodes[1].ID)
	require.False(t, ok, "undone node must be unreachable")
	_, ok = tr.NodeByID(nodes[2].ID)
	require.False(t, ok, "descendants of the undone node must be unreachable")

	require.ErrorIs(t, New("start").UndoLastMove(), ErrAtRoot)
}

func TestUndoThenRebranch(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4", "e5")

	require.NoError(t, tr.UndoLastMove())
	n, err := tr.AddNode(MoveData{SAN: "c5", UCI: "uci-c5", FENBefore: "pos-e4", FENAfter: "pos-c5"})
	require.NoError(t, err)

	// The replacement is the only child, not a variation
	require.Equal(t, 0, tr.SiblingIndex(n.ID))
	require.Equal(t, Path{0, 0}, tr.CurrentPath())
}

func TestNavigation(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4", "e5", "Nf3")

	require.True(t, tr.NavigateToStart())
	require.Equal(t, RootID, tr.Cursor().ID)
	require.False(t, tr.CanNavigateBackward())
	require.True(t, tr.CanNavigateForward())

	require.True(t, tr.NavigateToEnd())
	require.Equal(t, 3, tr.Ply())
	require.False(t, tr.CanNavigateForward())

	require.True(t, tr.NavigateToPly(1))
	require.Equal(t, "e4", tr.Cursor().SAN)

	// Extending past the cursor follows the mainline
	require.True(t, tr.NavigateToPly(3))
	require.Equal(t, "Nf3", tr.Cursor().SAN)

	require.False(t, tr.NavigateToPly(10))
	require.False(t, tr.NavigateToPly(-1))
}

func TestNavigateToPathAndVariations(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4", "e5")

	// Branch at ply 1
	require.True(t, tr.NavigateToPly(1))
	_, err := tr.AddNode(MoveData{SAN: "c5", UCI: "uci-c5", FENBefore: "pos-e4", FENAfter: "pos-c5"})
	require.NoError(t, err)
	require.Equal(t, Path{0, 1}, tr.CurrentPath())

	require.True(t, tr.NavigateToPath(Path{0, 0}))
	require.Equal(t, "e5", tr.Cursor().SAN)

	require.True(t, tr.NavigateToPath(nil))
	require.Equal(t, RootID, tr.Cursor().ID)

	require.False(t, tr.NavigateToPath(Path{0, 2}))

	// Forward with explicit variation index
	require.True(t, tr.NavigateForward(0))
	require.True(t, tr.NavigateForward(1))
	require.Equal(t, "c5", tr.Cursor().SAN)
	require.False(t, tr.NavigateForward(5))
}

func TestPromoteVariation(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4", "e5")

	require.True(t, tr.NavigateToPly(1))
	n, err := tr.AddNode(MoveData{SAN: "c5", UCI: "uci-c5", FENBefore: "pos-e4", FENAfter: "pos-c5"})
	require.NoError(t, err)
	require.Equal(t, Path{0, 1}, tr.CurrentPath())

	require.NoError(t, tr.PromoteVariation(n.ID))

	// The cursor still points at c5, but its path is now mainline
	require.Equal(t, n.ID, tr.Cursor().ID)
	require.Equal(t, Path{0, 0}, tr.CurrentPath())
	require.Equal(t, 0, tr.SiblingIndex(n.ID))

	// The old mainline became the variation
	p, ok := tr.PathTo(NodeID(2))
	require.True(t, ok)
	require.Equal(t, Path{0, 1}, p)

	require.ErrorIs(t, tr.PromoteVariation(RootID), ErrUnknownNode)
	require.ErrorIs(t, tr.PromoteVariation(NodeID(99)), ErrUnknownNode)
}

func TestPromoteVariationReordersAncestors(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4", "e5", "Nf3")

	// Variation at ply 1, then a reply under it
	require.True(t, tr.NavigateToPly(0))
	_, err := tr.AddNode(MoveData{SAN: "d4", UCI: "uci-d4", FENBefore: "start", FENAfter: "pos-d4"})
	require.NoError(t, err)
	reply, err := tr.AddNode(MoveData{SAN: "d5", UCI: "uci-d5", FENBefore: "pos-d4", FENAfter: "pos-d5"})
	require.NoError(t, err)
	require.Equal(t, Path{1, 0}, tr.CurrentPath())

	// Promoting the reply promotes the whole line
	require.NoError(t, tr.PromoteVariation(reply.ID))
	require.Equal(t, Path{0, 0}, tr.CurrentPath())

	p, ok := tr.PathTo(NodeID(1)) // old e4 line
	require.True(t, ok)
	require.Equal(t, Path{1}, p)
}

func TestFENHistory(t *testing.T) {
	tr := New(board.StartingFEN)

	_, err := tr.AddNode(MoveData{
		SAN: "Nf3", UCI: "g1f3",
		FENBefore: board.StartingFEN,
		FENAfter:  "rnbqkbnr/pppppppp/8/8/8/5N2/PPPPPPPP/RNBQKB1R b KQkq - 1 1",
	})
	require.NoError(t, err)

	history := tr.FENHistory()
	require.Equal(t, []string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR",
		"rnbqkbnr/pppppppp/8/8/8/5N2/PPPPPPPP/RNBQKB1R",
	}, history)
}

func TestCommentsAndEval(t *testing.T) {
	tr := New("start")
	nodes := chain(t, tr, "e4")

	require.NoError(t, tr.SetComment(nodes[0].ID, "book"))
	require.NoError(t, tr.SetEval(nodes[0].ID, "+0.3"))

	n, ok := tr.NodeByID(nodes[0].ID)
	require.True(t, ok)
	require.Equal(t, "book", n.Comment)
	require.Equal(t, "+0.3", n.Eval)

	require.ErrorIs(t, tr.SetComment(NodeID(42), "x"), ErrUnknownNode)
}

func TestResetDiscardsEverything(t *testing.T) {
	tr := New("start")
	chain(t, tr, "e4", "e5")
	tr.SetResult(core.ResultWhiteWins)

	tr.Reset("fresh")
	require.Equal(t, RootID, tr.Cursor().ID)
	require.Equal(t, "fresh", tr.CurrentFEN())
	require.Equal(t, core.ResultOngoing, tr.Result())
	require.False(t, tr.CanNavigateForward())
}
