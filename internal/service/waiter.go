package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// WaitTimeout is the maximum time a client can wait for notifications
	WaitTimeout = 25 * time.Second

	// WaitChannelBuffer size for notification channels
	WaitChannelBuffer = 1
)

// WaitRegistry manages long-polling clients waiting for session state
// changes. Clients hand in the event sequence number they have already
// seen; any newer sequence wakes them.
type WaitRegistry struct {
	mu       sync.RWMutex
	waiters  map[string][]*WaitRequest // sessionID → waiting clients
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// WaitRequest represents a single client waiting for session updates
type WaitRequest struct {
	Seq       int64           // Last event sequence the client has seen
	Notify    chan struct{}   // Buffered channel for notifications
	Timer     *time.Timer     // Timeout timer
	Context   context.Context // Client connection context
	SessionID string          // Session being watched
}

// NewWaitRegistry creates a new wait registry
func NewWaitRegistry() *WaitRegistry {
	return &WaitRegistry{
		waiters:  make(map[string][]*WaitRequest),
		shutdown: make(chan struct{}),
	}
}

// RegisterWait registers a client to wait for session state changes
func (w *WaitRegistry) RegisterWait(sessionID string, seq int64, ctx context.Context) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	req := &WaitRequest{
		Seq:       seq,
		Notify:    make(chan struct{}, WaitChannelBuffer),
		Context:   ctx,
		SessionID: sessionID,
	}

	req.Timer = time.AfterFunc(WaitTimeout, func() {
		w.handleTimeout(req)
	})

	w.waiters[sessionID] = append(w.waiters[sessionID], req)

	// Cleanup on context cancellation
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
			// Client disconnected
			w.removeWaiter(sessionID, req)
		case <-req.Notify:
			// Notification received
			req.Timer.Stop()
			w.removeWaiter(sessionID, req)
		case <-w.shutdown:
			// Server shutting down
			req.Timer.Stop()
			close(req.Notify)
		}
	}()

	return req.Notify
}

// NotifySession notifies all clients waiting on a session about a
// state change identified by the new event sequence number.
func (w *WaitRegistry) NotifySession(sessionID string, currentSeq int64) {
	w.mu.RLock()
	waitList := w.waiters[sessionID]
	w.mu.RUnlock()

	if len(waitList) == 0 {
		return
	}

	// Non-blocking notification to all waiters
	for _, req := range waitList {
		// Only notify if the sequence advanced past what they saw
		if req.Seq != currentSeq {
			select {
			case req.Notify <- struct{}{}:
				// Notification sent
			default:
				// Channel full or closed, skip slow client
			}
		}
	}
}

// RemoveSession removes all waiters for a session (called before deletion)
func (w *WaitRegistry) RemoveSession(sessionID string) {
	w.mu.Lock()
	waitList := w.waiters[sessionID]
	delete(w.waiters, sessionID)
	w.mu.Unlock()

	// Notify all waiters that the session is gone
	for _, req := range waitList {
		select {
		case req.Notify <- struct{}{}:
		default:
		}
	}
}

// Shutdown gracefully shuts down the wait registry
func (w *WaitRegistry) Shutdown(timeout time.Duration) error {
	close(w.shutdown)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wait registry shutdown failed")
	}
}

// handleTimeout handles wait request timeout
func (w *WaitRegistry) handleTimeout(req *WaitRequest) {
	select {
	case req.Notify <- struct{}{}:
		// Timeout notification sent
	default:
		// Channel full or closed
	}
}

// removeWaiter removes a specific waiter from the registry
func (w *WaitRegistry) removeWaiter(sessionID string, req *WaitRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waitList := w.waiters[sessionID]
	for i, waiter := range waitList {
		if waiter == req {
			w.waiters[sessionID] = append(waitList[:i], waitList[i+1:]...)
			break
		}
	}

	if len(w.waiters[sessionID]) == 0 {
		delete(w.waiters, sessionID)
	}

	req.Timer.Stop()
}
