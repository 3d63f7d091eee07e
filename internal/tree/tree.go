// Package tree stores the move history of a game as an ordered tree of
// positions. Nodes live in an arena and reference each other by id, so
// snapshots handed to callers never expose mutable structure. All
// mutation goes through Tree methods.
package tree

import (
	"errors"

	"chesskit/internal/board"
	"chesskit/internal/core"
)

var (
	// ErrDesync means the move's starting position does not match the
	// cursor position; the caller's board state has drifted.
	ErrDesync = errors.New("tree: move does not continue the cursor position")

	ErrAtRoot      = errors.New("tree: cursor is at the root")
	ErrUnknownNode = errors.New("tree: unknown node")
)

// parent sentinel for nodes detached by undo
const detached = -2

type NodeID int

const RootID NodeID = 0

type node struct {
	id        NodeID
	parent    NodeID // -1 for the root
	children  []NodeID
	san       string
	uci       string
	fenBefore string
	fenAfter  string
	comment   string
	eval      string
}

// Node is a read-only snapshot of a tree node.
type Node struct {
	ID        NodeID
	Parent    NodeID
	Children  []NodeID
	SAN       string
	UCI       string
	FENBefore string
	FENAfter  string
	Comment   string
	Eval      string
}

// MoveData describes the move appended by AddNode.
type MoveData struct {
	SAN       string
	UCI       string
	FENBefore string
	FENAfter  string
}

// Tree holds the node arena, the cursor and the stored result token.
// Node ids are stable for the lifetime of the tree and never reused;
// Reset discards the arena entirely.
type Tree struct {
	nodes  []*node
	cursor NodeID
	result core.Result
}

func New(fen string) *Tree {
	t := &Tree{}
	t.Reset(fen)
	return t
}

// Reset replaces the whole tree with a single root whose position is
// fen, and moves the cursor to it.
func (t *Tree) Reset(fen string) {
	t.nodes = []*node{{id: RootID, parent: -1, fenAfter: fen}}
	t.cursor = RootID
	t.result = core.ResultOngoing
}

func (t *Tree) snapshot(id NodeID) Node {
	n := t.nodes[id]
	children := make([]NodeID, len(n.children))
	copy(children, n.children)
	return Node{
		ID:        n.id,
		Parent:    n.parent,
		Children:  children,
		SAN:       n.san,
		UCI:       n.uci,
		FENBefore: n.fenBefore,
		FENAfter:  n.fenAfter,
		Comment:   n.comment,
		Eval:      n.eval,
	}
}

// Cursor returns a snapshot of the node the cursor points at.
func (t *Tree) Cursor() Node {
	return t.snapshot(t.cursor)
}

// NodeByID returns a snapshot of the node, if it exists and is still
// attached to the tree.
func (t *Tree) NodeByID(id NodeID) (Node, bool) {
	if !t.attached(id) {
		return Node{}, false
	}
	return t.snapshot(id), true
}

func (t *Tree) attached(id NodeID) bool {
	if id < 0 || int(id) >= len(t.nodes) {
		return false
	}
	for n := t.nodes[id]; ; n = t.nodes[n.parent] {
		if n.parent == -1 {
			return true
		}
		if n.parent == detached {
			return false
		}
	}
}

func (t *Tree) RootFEN() string {
	return t.nodes[RootID].fenAfter
}

// CurrentFEN returns the position at the cursor.
func (t *Tree) CurrentFEN() string {
	return t.nodes[t.cursor].fenAfter
}

// AddNode appends a move at the cursor and advances the cursor to it.
// When an existing child already carries the same UCI move, that child
// becomes the cursor instead of branching: replaying a known variation
// must not duplicate it. The desync guard rejects a move whose
// starting position is not the cursor position.
func (t *Tree) AddNode(d MoveData) (Node, error) {
	cur := t.nodes[t.cursor]
	if d.FENBefore != cur.fenAfter {
		return Node{}, ErrDesync
	}
	for _, cid := range cur.children {
		if t.nodes[cid].uci == d.UCI {
			t.cursor = cid
			return t.snapshot(cid), nil
		}
	}
	n := &node{
		id:        NodeID(len(t.nodes)),
		parent:    cur.id,
		san:       d.SAN,
		uci:       d.UCI,
		fenBefore: d.FENBefore,
		fenAfter:  d.FENAfter,
	}
	t.nodes = append(t.nodes, n)
	cur.children = append(cur.children, n.id)
	t.cursor = n.id
	return t.snapshot(n.id), nil
}

// UndoLastMove detaches the cursor node together with its whole
// subtree and re-points the cursor at the parent. Variations under the
// removed node are discarded. Fails at the root.
func (t *Tree) UndoLastMove() error {
	cur := t.nodes[t.cursor]
	if cur.parent == -1 {
		return ErrAtRoot
	}
	p := t.nodes[cur.parent]
	for i, cid := range p.children {
		if cid == cur.id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	cur.parent = detached
	t.cursor = p.id
	return nil
}

// SetComment annotates the given node. Comments are opaque to the
// engine and only surface in PGN output.
func (t *Tree) SetComment(id NodeID, comment string) error {
	if !t.attached(id) {
		return ErrUnknownNode
	}
	t.nodes[id].comment = comment
	return nil
}

// SetEval stores an opaque evaluation annotation on the given node.
func (t *Tree) SetEval(id NodeID, eval string) error {
	if !t.attached(id) {
		return ErrUnknownNode
	}
	t.nodes[id].eval = eval
	return nil
}

// NavigateToPath moves the cursor to the node addressed by the given
// sibling-index path. Paths are recomputed after variation promotion,
// so callers must re-resolve rather than cache them.
func (t *Tree) NavigateToPath(p Path) bool {
	id := RootID
	for _, idx := range p {
		children := t.nodes[id].children
		if idx < 0 || idx >= len(children) {
			return false
		}
		id = children[idx]
	}
	t.cursor = id
	return true
}

// NavigateToPly moves the cursor to the given depth along the current
// line, extending forward along the mainline when the target is past
// the cursor.
func (t *Tree) NavigateToPly(ply int) bool {
	if ply < 0 {
		return false
	}
	line := t.lineToCursor()
	for len(line) <= ply {
		last := t.nodes[line[len(line)-1]]
		if len(last.children) == 0 {
			return false
		}
		line = append(line, last.children[0])
	}
	t.cursor = line[ply]
	return true
}

func (t *Tree) lineToCursor() []NodeID {
	var rev []NodeID
	for id := t.cursor; ; {
		rev = append(rev, id)
		n := t.nodes[id]
		if n.parent == -1 {
			break
		}
		id = n.parent
	}
	line := make([]NodeID, len(rev))
	for i, id := range rev {
		line[len(rev)-1-i] = id
	}
	return line
}

func (t *Tree) NavigateBackward() bool {
	n := t.nodes[t.cursor]
	if n.parent == -1 {
		return false
	}
	t.cursor = n.parent
	return true
}

// NavigateForward follows the child at the given variation index;
// index 0 is the mainline continuation.
func (t *Tree) NavigateForward(variation int) bool {
	children := t.nodes[t.cursor].children
	if variation < 0 || variation >= len(children) {
		return false
	}
	t.cursor = children[variation]
	return true
}

func (t *Tree) NavigateToStart() bool {
	t.cursor = RootID
	return true
}

// NavigateToEnd follows the mainline from the cursor to a leaf.
func (t *Tree) NavigateToEnd() bool {
	for len(t.nodes[t.cursor].children) > 0 {
		t.cursor = t.nodes[t.cursor].children[0]
	}
	return true
}

// PromoteVariation reorders the given node to index 0 among its
// siblings, and does the same for every ancestor up to the root, so
// the whole line becomes the mainline. The cursor keeps pointing at
// the same node, but computed paths change.
func (t *Tree) PromoteVariation(id NodeID) error {
	if id == RootID || !t.attached(id) {
		return ErrUnknownNode
	}
	for cur := id; cur != RootID; {
		n := t.nodes[cur]
		siblings := t.nodes[n.parent].children
		for i, sid := range siblings {
			if sid != cur {
				continue
			}
			copy(siblings[1:i+1], siblings[:i])
			siblings[0] = cur
			break
		}
		cur = n.parent
	}
	return nil
}

// FENHistory returns the piece-placement FEN fields from root to
// cursor inclusive, the sequence repetition counting scans.
func (t *Tree) FENHistory() []string {
	line := t.lineToCursor()
	history := make([]string, len(line))
	for i, id := range line {
		history[i] = board.PlacementField(t.nodes[id].fenAfter)
	}
	return history
}

// PathTo computes the sibling-index path of a node.
func (t *Tree) PathTo(id NodeID) (Path, bool) {
	if !t.attached(id) {
		return nil, false
	}
	var rev []int
	for cur := id; cur != RootID; {
		n := t.nodes[cur]
		siblings := t.nodes[n.parent].children
		idx := -1
		for i, sid := range siblings {
			if sid == cur {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		rev = append(rev, idx)
		cur = n.parent
	}
	p := make(Path, len(rev))
	for i, idx := range rev {
		p[len(rev)-1-i] = idx
	}
	return p, true
}

func (t *Tree) CurrentPath() Path {
	p, _ := t.PathTo(t.cursor)
	return p
}

// Ply returns the depth of the cursor; the root is ply 0.
func (t *Tree) Ply() int {
	ply := 0
	for n := t.nodes[t.cursor]; n.parent != -1; n = t.nodes[n.parent] {
		ply++
	}
	return ply
}

// SiblingIndex returns the node's index among its siblings; the root
// reports 0. Index > 0 means the node is a variation.
func (t *Tree) SiblingIndex(id NodeID) int {
	n := t.nodes[id]
	if n.parent < 0 {
		return 0
	}
	for i, sid := range t.nodes[n.parent].children {
		if sid == id {
			return i
		}
	}
	return 0
}

// Siblings returns snapshots of the cursor node and its siblings, in
// sibling order. Empty at the root.
func (t *Tree) Siblings() []Node {
	n := t.nodes[t.cursor]
	if n.parent < 0 {
		return nil
	}
	siblings := t.nodes[n.parent].children
	out := make([]Node, len(siblings))
	for i, sid := range siblings {
		out[i] = t.snapshot(sid)
	}
	return out
}

func (t *Tree) CanNavigateForward() bool {
	return len(t.nodes[t.cursor].children) > 0
}

func (t *Tree) CanNavigateBackward() bool {
	return t.nodes[t.cursor].parent != -1
}

func (t *Tree) SetResult(r core.Result) {
	t.result = r
}

func (t *Tree) Result() core.Result {
	return t.result
}
