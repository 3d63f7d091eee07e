package tree

import (
	"fmt"
	"strings"

	"chesskit/internal/board"
	"chesskit/internal/core"
)

// PGNOptions controls movetext serialization.
type PGNOptions struct {
	ShowResult     bool
	ShowVariations bool
}

// PGN serializes the tree as standard movetext: the mainline follows
// children[0] of each node, and with ShowVariations the remaining
// siblings are emitted in parentheses after the mainline move they
// diverge from. Move numbering starts from the root position's
// full-move counter.
func (t *Tree) PGN(opts PGNOptions) string {
	moveNum := 1
	white := true
	if b, err := board.ParseFEN(t.RootFEN()); err == nil {
		moveNum = b.FullmoveNumber()
		white = b.Turn() == core.ColorWhite
	}

	var sb strings.Builder
	t.writeLine(&sb, RootID, moveNum, white, true, opts)
	if opts.ShowResult {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(string(t.result))
	}
	return sb.String()
}

// writeLine walks the mainline from the given node, emitting each
// move token and, when requested, the sibling variations in
// parentheses. numbered forces a "N..." prefix on the next black move
// (line start, or right after a closed variation).
func (t *Tree) writeLine(sb *strings.Builder, id NodeID, moveNum int, white, numbered bool, opts PGNOptions) {
	for {
		n := t.nodes[id]
		if len(n.children) == 0 {
			return
		}
		main := n.children[0]
		t.writeToken(sb, main, moveNum, white, numbered)
		numbered = false

		if opts.ShowVariations && len(n.children) > 1 {
			for _, vid := range n.children[1:] {
				sb.WriteString(" (")
				t.writeToken(sb, vid, moveNum, white, true)
				nextNum, nextWhite := advance(moveNum, white)
				t.writeLine(sb, vid, nextNum, nextWhite, false, opts)
				sb.WriteString(")")
			}
			numbered = true
		}

		moveNum, white = advance(moveNum, white)
		id = main
	}
}

func (t *Tree) writeToken(sb *strings.Builder, id NodeID, moveNum int, white, numbered bool) {
	if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "(") {
		sb.WriteByte(' ')
	}
	n := t.nodes[id]
	switch {
	case white:
		fmt.Fprintf(sb, "%d. %s", moveNum, n.san)
	case numbered:
		fmt.Fprintf(sb, "%d... %s", moveNum, n.san)
	default:
		sb.WriteString(n.san)
	}
	if n.comment != "" {
		fmt.Fprintf(sb, " {%s}", n.comment)
	}
}

func advance(moveNum int, white bool) (int, bool) {
	if white {
		return moveNum, false
	}
	return moveNum + 1, true
}
