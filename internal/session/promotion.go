package session

import (
	"errors"
	"sync"

	"chesskit/internal/core"
)

var (
	ErrPromotionPending = errors.New("session: a promotion choice is already pending")
	ErrNoPromotion      = errors.New("session: no promotion choice is pending")
)

// PromotionObserver is notified when a move suspends on a promotion
// choice, so a UI can render the piece chooser.
type PromotionObserver func(origin, dest string, color core.Color)

// PromotionFlow suspends move completion until a role is chosen. At
// most one choice can be pending; the coordinator guarantees it never
// starts a second one while suspended.
type PromotionFlow struct {
	mu        sync.Mutex
	pending   *pendingPromotion
	observers []PromotionObserver
}

type pendingPromotion struct {
	origin, dest string
	color        core.Color
	onResolved   func(role core.PromotionRole, chosen bool)
}

func NewPromotionFlow() *PromotionFlow {
	return &PromotionFlow{}
}

// Observe registers a UI callback for the start of a promotion choice.
func (f *PromotionFlow) Observe(fn PromotionObserver) {
	f.mu.Lock()
	f.observers = append(f.observers, fn)
	f.mu.Unlock()
}

// Start stores the pending context and notifies observers. The
// onResolved continuation is invoked exactly once, by Finish or
// Cancel, with chosen=false meaning the choice was abandoned.
func (f *PromotionFlow) Start(origin, dest string, color core.Color, onResolved func(core.PromotionRole, bool)) error {
	f.mu.Lock()
	if f.pending != nil {
		f.mu.Unlock()
		return ErrPromotionPending
	}
	f.pending = &pendingPromotion{origin: origin, dest: dest, color: color, onResolved: onResolved}
	observers := append([]PromotionObserver(nil), f.observers...)
	f.mu.Unlock()

	for _, fn := range observers {
		fn(origin, dest, color)
	}
	return nil
}

// Finish resolves the pending choice with the given role.
func (f *PromotionFlow) Finish(role core.PromotionRole) error {
	f.mu.Lock()
	p := f.pending
	f.pending = nil
	f.mu.Unlock()
	if p == nil {
		return ErrNoPromotion
	}
	p.onResolved(role, true)
	return nil
}

// Cancel abandons the pending choice.
func (f *PromotionFlow) Cancel() error {
	f.mu.Lock()
	p := f.pending
	f.pending = nil
	f.mu.Unlock()
	if p == nil {
		return ErrNoPromotion
	}
	p.onResolved(0, false)
	return nil
}

// Pending reports the suspended move, if any.
func (f *PromotionFlow) Pending() (origin, dest string, color core.Color, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return "", "", 0, false
	}
	return f.pending.origin, f.pending.dest, f.pending.color, true
}
