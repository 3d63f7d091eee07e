package core

import "fmt"

type Color byte

const (
	ColorWhite Color = 'w'
	ColorBlack Color = 'b'
)

func (c Color) String() string {
	return string(c)
}

func OppositeColor(c Color) Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// PromotionRole is the piece a pawn promotes to, as its UCI letter.
type PromotionRole byte

const (
	PromoteQueen  PromotionRole = 'q'
	PromoteRook   PromotionRole = 'r'
	PromoteBishop PromotionRole = 'b'
	PromoteKnight PromotionRole = 'n'
)

func (r PromotionRole) String() string {
	return string(r)
}

// ParsePromotionRole accepts a single UCI promotion letter.
func ParsePromotionRole(s string) (PromotionRole, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("invalid promotion role: %q", s)
	}
	switch PromotionRole(s[0]) {
	case PromoteQueen, PromoteRook, PromoteBishop, PromoteKnight:
		return PromotionRole(s[0]), nil
	}
	return 0, fmt.Errorf("invalid promotion role: %q", s)
}

// Result is the PGN result token stored alongside a game tree.
type Result string

const (
	ResultWhiteWins Result = "1-0"
	ResultBlackWins Result = "0-1"
	ResultDraw      Result = "1/2-1/2"
	ResultOngoing   Result = "*"
)

// ParseResult validates a result token.
func ParseResult(s string) (Result, error) {
	switch Result(s) {
	case ResultWhiteWins, ResultBlackWins, ResultDraw, ResultOngoing:
		return Result(s), nil
	}
	return "", fmt.Errorf("invalid result token: %q", s)
}
