// Package session implements the move coordinator: the state machine
// that ties move intents to tree mutation, board recomputation, status
// classification and event publication. The tree and the live position
// are owned exclusively by the coordinator; collaborators only see
// snapshots carried on published events.
package session

import (
	"sync"

	"go.uber.org/zap"

	"chesskit/internal/board"
	"chesskit/internal/core"
	"chesskit/internal/position"
	"chesskit/internal/tree"
)

// State of the coordinator. The only suspension point is promotion.
type State int

const (
	StateReady State = iota
	StateAwaitingPromotionChoice
)

// Fifty-move rule threshold in half moves.
const fiftyMoveHalfmoveClock = 100

const repetitionCount = 3

// MoveOutcome reports what a move intent did. Rejections are ordinary
// outcomes, never errors: a rejected move leaves all state unchanged
// and the caller just re-renders.
type MoveOutcome struct {
	Committed          bool
	IsIllegal          bool
	AwaitingPromotion  bool
	PromotionCancelled bool
	SAN                string
	UCI                string
	FEN                string
	Path               string
	IsVariation        bool
	Status             core.GameStatus
}

// Coordinator is the public-facing state machine for one game session.
// Methods are safe for concurrent use, but the engine is deliberately
// not reentrant during the promotion-suspended window: a second move
// attempt while a choice is pending is rejected, not queued.
type Coordinator struct {
	mu     sync.Mutex
	log    *zap.SugaredLogger
	engine *position.Engine

	tree   *tree.Tree
	live   position.Position
	status core.GameStatus
	state  State

	promo *PromotionFlow
	bus   *Bus

	freeAnalysis bool

	// filled by the promotion continuation while the mutex is held
	resolved       MoveOutcome
	resolvedEvents []core.Event
}

// New builds a coordinator for the given starting FEN. A malformed
// FEN is logged and replaced by the standard starting position rather
// than failing the session.
func New(log *zap.SugaredLogger, engine *position.Engine, fen string) *Coordinator {
	c := &Coordinator{
		log:    log,
		engine: engine,
		promo:  NewPromotionFlow(),
		bus:    NewBus(),
	}
	c.tree = tree.New(c.checkedFEN(fen))
	c.recompute()
	return c
}

func (c *Coordinator) checkedFEN(fen string) string {
	if fen == "" {
		return board.StartingFEN
	}
	if _, err := c.engine.Parse(fen); err != nil {
		if c.log != nil {
			c.log.Warnw("invalid fen, falling back to starting position",
				"fen", fen, "error", err)
		}
		return board.StartingFEN
	}
	return fen
}

// Reset replaces the tree and live position. Malformed FEN falls back
// to the starting position.
func (c *Coordinator) Reset(fen string) {
	c.mu.Lock()
	c.tree.Reset(c.checkedFEN(fen))
	c.state = StateReady
	c.recompute()
	ev := c.navEvent()
	c.mu.Unlock()
	c.bus.publish(ev)
}

// Events returns the coordinator's event bus.
func (c *Coordinator) Events() *Bus {
	return c.bus
}

// Promotion returns the promotion sub-state-machine, for observers
// that render the piece chooser.
func (c *Coordinator) Promotion() *PromotionFlow {
	return c.promo
}

// SetFreeAnalysis toggles the analysis override: when on, a finished
// game no longer blocks move acceptance, but legality still applies.
func (c *Coordinator) SetFreeAnalysis(on bool) {
	c.mu.Lock()
	c.freeAnalysis = on
	c.mu.Unlock()
}

func (c *Coordinator) FreeAnalysis() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freeAnalysis
}

// AttemptMove handles a user move intent between two squares. When
// the move is a pawn reaching the far rank, the coordinator suspends
// into AwaitingPromotionChoice and nothing commits until the
// promotion flow resolves.
func (c *Coordinator) AttemptMove(origin, dest string) MoveOutcome {
	c.mu.Lock()
	if c.state == StateAwaitingPromotionChoice {
		c.mu.Unlock()
		return MoveOutcome{IsIllegal: true}
	}
	if c.status.IsGameOver && !c.freeAnalysis {
		c.mu.Unlock()
		return MoveOutcome{IsIllegal: true}
	}
	if c.engine.RequiresPromotionChoice(c.live, origin, dest) {
		color := c.live.Turn()
		c.state = StateAwaitingPromotionChoice
		c.mu.Unlock()
		// observers run outside the lock so they may query state
		if err := c.promo.Start(origin, dest, color, c.promotionContinuation(origin, dest)); err != nil {
			c.mu.Lock()
			c.state = StateReady
			c.mu.Unlock()
			return MoveOutcome{IsIllegal: true}
		}
		return MoveOutcome{AwaitingPromotion: true}
	}
	out, events := c.commit(origin + dest)
	c.mu.Unlock()
	c.publishAll(events)
	return out
}

// promotionContinuation completes or abandons the suspended move. It
// runs while the mutex is held by ChoosePromotion or CancelPromotion.
func (c *Coordinator) promotionContinuation(origin, dest string) func(core.PromotionRole, bool) {
	return func(role core.PromotionRole, chosen bool) {
		c.state = StateReady
		if !chosen {
			c.resolved = MoveOutcome{PromotionCancelled: true}
			c.resolvedEvents = nil
			return
		}
		c.resolved, c.resolvedEvents = c.commit(origin + dest + role.String())
	}
}

// ChoosePromotion resumes a suspended move with the chosen role.
func (c *Coordinator) ChoosePromotion(role core.PromotionRole) (MoveOutcome, error) {
	c.mu.Lock()
	if c.state != StateAwaitingPromotionChoice {
		c.mu.Unlock()
		return MoveOutcome{}, ErrNoPromotion
	}
	err := c.promo.Finish(role)
	out, events := c.resolved, c.resolvedEvents
	c.resolvedEvents = nil
	c.mu.Unlock()
	if err != nil {
		return MoveOutcome{}, err
	}
	c.publishAll(events)
	return out, nil
}

// CancelPromotion abandons a suspended move; tree and live position
// are untouched and the state returns to Ready.
func (c *Coordinator) CancelPromotion() (MoveOutcome, error) {
	c.mu.Lock()
	if c.state != StateAwaitingPromotionChoice {
		c.mu.Unlock()
		return MoveOutcome{}, ErrNoPromotion
	}
	err := c.promo.Cancel()
	out := c.resolved
	c.resolvedEvents = nil
	c.mu.Unlock()
	if err != nil {
		return MoveOutcome{}, err
	}
	return out, nil
}

// ApplySystemMove plays a move supplied as a full UCI string, e.g.
// from an engine suggestion or a replayed game. Promotion detection
// is bypassed: the UCI string already encodes any promotion role.
func (c *Coordinator) ApplySystemMove(uci string) MoveOutcome {
	c.mu.Lock()
	if c.state == StateAwaitingPromotionChoice {
		c.mu.Unlock()
		return MoveOutcome{IsIllegal: true}
	}
	if c.status.IsGameOver && !c.freeAnalysis {
		c.mu.Unlock()
		return MoveOutcome{IsIllegal: true}
	}
	out, events := c.commit(uci)
	c.mu.Unlock()
	c.publishAll(events)
	return out
}

// commit runs the single move pipeline: legality, notation (with UCI
// fallback), position application, tree insertion, then recomputation
// of the live state from the tree's new cursor. Recomputing from the
// cursor rather than the applied position guarantees the board always
// mirrors the tree, even when AddNode deduplicated into an existing
// child. Callers hold the mutex and publish the returned events after
// releasing it.
func (c *Coordinator) commit(uci string) (MoveOutcome, []core.Event) {
	if !c.engine.IsLegal(c.live, uci) {
		return MoveOutcome{IsIllegal: true}, nil
	}
	san := c.engine.SAN(c.live, uci)
	next, err := c.engine.Apply(c.live, uci)
	if err != nil {
		if c.log != nil {
			c.log.Errorw("apply failed after legality check", "uci", uci, "error", err)
		}
		return MoveOutcome{IsIllegal: true}, nil
	}
	node, err := c.tree.AddNode(tree.MoveData{
		SAN:       san,
		UCI:       uci,
		FENBefore: c.live.FEN(),
		FENAfter:  next.FEN(),
	})
	if err != nil {
		// The live board drifted from the tree cursor. Surface the
		// move as rejected; callers resync from the cursor FEN.
		if c.log != nil {
			c.log.Warnw("tree rejected move, resync required",
				"uci", uci, "cursorFen", c.tree.CurrentFEN(), "error", err)
		}
		return MoveOutcome{IsIllegal: true}, nil
	}

	c.recompute()
	if c.status.IsGameOver {
		c.tree.SetResult(c.status.ResultToken())
	}

	path := c.tree.CurrentPath().String()
	isVariation := c.tree.SiblingIndex(node.ID) > 0
	out := MoveOutcome{
		Committed:   true,
		SAN:         node.SAN,
		UCI:         node.UCI,
		FEN:         c.live.FEN(),
		Path:        path,
		IsVariation: isVariation,
		Status:      c.status,
	}
	ev := core.MoveMade{
		NewNodePath: path,
		NewFEN:      c.live.FEN(),
		UCIMove:     node.UCI,
		SANMove:     node.SAN,
		IsVariation: isVariation,
		Status:      c.status,
	}
	return out, []core.Event{ev}
}

// recompute refreshes the live position and derived status from the
// tree cursor. Called with the mutex held.
func (c *Coordinator) recompute() {
	p, err := c.engine.Parse(c.tree.CurrentFEN())
	if err != nil {
		// the tree only ever stores engine-produced FENs
		if c.log != nil {
			c.log.Errorw("cursor fen failed to parse",
				"fen", c.tree.CurrentFEN(), "error", err)
		}
		return
	}
	c.live = p
	c.status = c.classify()
}

// classify layers repetition and the fifty-move rule on top of the
// engine's structural terminal detection, in that priority order.
func (c *Coordinator) classify() core.GameStatus {
	st := core.GameStatus{
		Turn:    c.live.Turn().String(),
		IsCheck: c.engine.InCheck(c.live),
	}
	switch c.engine.TerminalStatus(c.live) {
	case position.TerminalCheckmate:
		st.IsGameOver = true
		st.Outcome = &core.Outcome{
			Winner: core.OppositeColor(c.live.Turn()).String(),
			Reason: core.ReasonCheckmate,
		}
	case position.TerminalStalemate:
		st.IsGameOver = true
		st.Outcome = &core.Outcome{Reason: core.ReasonStalemate}
	case position.TerminalInsufficientMaterial:
		st.IsGameOver = true
		st.Outcome = &core.Outcome{Reason: core.ReasonInsufficientMaterial}
	default:
		history := c.tree.FENHistory()
		current := history[len(history)-1]
		seen := 0
		for _, f := range history {
			if f == current {
				seen++
			}
		}
		if seen >= repetitionCount {
			st.IsGameOver = true
			st.Outcome = &core.Outcome{Reason: core.ReasonThreefoldRepetition}
			break
		}
		if c.live.HalfmoveClock() >= fiftyMoveHalfmoveClock {
			st.IsGameOver = true
			st.Outcome = &core.Outcome{Reason: core.ReasonFiftyMoveRule}
		}
	}
	return st
}

func (c *Coordinator) navEvent() core.Event {
	return core.PgnNavigated{
		CurrentNodePath: c.tree.CurrentPath().String(),
		CurrentFEN:      c.live.FEN(),
		Ply:             c.tree.Ply(),
	}
}

func (c *Coordinator) publishAll(events []core.Event) {
	for _, ev := range events {
		c.bus.publish(ev)
	}
}

// navigate wraps a cursor movement: on success the live state is
// recomputed from the target node and a PgnNavigated event published.
func (c *Coordinator) navigate(move func() bool) bool {
	c.mu.Lock()
	ok := move()
	var ev core.Event
	if ok {
		c.recompute()
		ev = c.navEvent()
	}
	c.mu.Unlock()
	if ok {
		c.bus.publish(ev)
	}
	return ok
}

func (c *Coordinator) NavigateToPath(p tree.Path) bool {
	return c.navigate(func() bool { return c.tree.NavigateToPath(p) })
}

func (c *Coordinator) NavigateToPly(ply int) bool {
	return c.navigate(func() bool { return c.tree.NavigateToPly(ply) })
}

func (c *Coordinator) NavigateBackward() bool {
	return c.navigate(func() bool { return c.tree.NavigateBackward() })
}

func (c *Coordinator) NavigateForward(variation int) bool {
	return c.navigate(func() bool { return c.tree.NavigateForward(variation) })
}

func (c *Coordinator) NavigateToStart() bool {
	return c.navigate(func() bool { return c.tree.NavigateToStart() })
}

func (c *Coordinator) NavigateToEnd() bool {
	return c.navigate(func() bool { return c.tree.NavigateToEnd() })
}

// UndoLastMove removes the cursor node and its subtree, then
// republishes navigation state from the parent.
func (c *Coordinator) UndoLastMove() error {
	c.mu.Lock()
	err := c.tree.UndoLastMove()
	var ev core.Event
	if err == nil {
		c.recompute()
		ev = c.navEvent()
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.bus.publish(ev)
	return nil
}

// PromoteVariation makes the given node's line the mainline. The
// cursor's identity is unchanged but its computed path is not, so a
// PgnNavigated event republishes the new path.
func (c *Coordinator) PromoteVariation(id tree.NodeID) error {
	c.mu.Lock()
	err := c.tree.PromoteVariation(id)
	var ev core.Event
	if err == nil {
		ev = c.navEvent()
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.bus.publish(ev)
	return nil
}

// Read-only query surface.

func (c *Coordinator) FEN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.FEN()
}

func (c *Coordinator) LegalDestinations() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.LegalDestinations()
}

func (c *Coordinator) Status() core.GameStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) PGN(opts tree.PGNOptions) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.PGN(opts)
}

func (c *Coordinator) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.CurrentPath().String()
}

func (c *Coordinator) Ply() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Ply()
}

// Siblings lists the cursor node and its sibling variations.
func (c *Coordinator) Siblings() []tree.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Siblings()
}

func (c *Coordinator) CanNavigateForward() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.CanNavigateForward()
}

func (c *Coordinator) CanNavigateBackward() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.CanNavigateBackward()
}

func (c *Coordinator) Result() core.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Result()
}

func (c *Coordinator) SetResult(r core.Result) {
	c.mu.Lock()
	c.tree.SetResult(r)
	c.mu.Unlock()
}
