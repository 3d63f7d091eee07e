package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chesskit/internal/position"
)

// woken reports whether the waiter was notified: either the token is
// still in the buffered channel, or the cleanup goroutine consumed it
// and removed the waiter from the registry.
func woken(w *WaitRegistry, sessionID string, ch <-chan struct{}) func() bool {
	return func() bool {
		select {
		case <-ch:
			return true
		default:
		}
		w.mu.RLock()
		defer w.mu.RUnlock()
		return len(w.waiters[sessionID]) == 0
	}
}

func registeredWaiters(w *WaitRegistry, sessionID string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.waiters[sessionID])
}

func TestWaitRegistryNotifyWakesWaiter(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ch := w.RegisterWait("s1", 0, context.Background())
	require.Equal(t, 1, registeredWaiters(w, "s1"))

	w.NotifySession("s1", 1)
	require.Eventually(t, woken(w, "s1", ch), time.Second, 10*time.Millisecond)
}

func TestWaitRegistryIgnoresSeenSeq(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ch := w.RegisterWait("s1", 3, context.Background())

	// Same sequence the client already saw: nothing to report
	w.NotifySession("s1", 3)
	time.Sleep(50 * time.Millisecond)

	select {
	case <-ch:
		t.Fatal("waiter woken without a state change")
	default:
	}
	require.Equal(t, 1, registeredWaiters(w, "s1"))
}

func TestWaitRegistryContextCancelRemovesWaiter(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	w.RegisterWait("s1", 0, ctx)
	require.Equal(t, 1, registeredWaiters(w, "s1"))

	cancel()
	require.Eventually(t, func() bool {
		return registeredWaiters(w, "s1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWaitRegistryRemoveSession(t *testing.T) {
	w := NewWaitRegistry()
	defer w.Shutdown(time.Second)

	ch := w.RegisterWait("s1", 0, context.Background())
	w.RemoveSession("s1")

	require.Equal(t, 0, registeredWaiters(w, "s1"))
	require.Eventually(t, woken(w, "s1", ch), time.Second, 10*time.Millisecond)
}

func TestWaitRegistryShutdownClosesWaiters(t *testing.T) {
	w := NewWaitRegistry()

	ch := w.RegisterWait("s1", 0, context.Background())
	require.NoError(t, w.Shutdown(time.Second))

	// Closed channel wakes every blocked client
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter not released on shutdown")
	}
}

// TestSessionEventsAdvanceSeqAndNotify exercises the full long-poll
// cycle: a coordinator event bumps the session sequence and wakes the
// registered waiter.
func TestSessionEventsAdvanceSeqAndNotify(t *testing.T) {
	log := zap.NewNop().Sugar()
	svc := New(log, position.NewEngine(log), nil)
	defer svc.Shutdown(time.Second)

	sess := svc.CreateSession("", false)
	require.Equal(t, int64(0), sess.Seq())

	ch := svc.Waiter().RegisterWait(sess.ID, sess.Seq(), context.Background())

	out := sess.Coord.AttemptMove("e2", "e4")
	require.True(t, out.Committed)

	require.Equal(t, int64(1), sess.Seq())
	require.Eventually(t, woken(svc.Waiter(), sess.ID, ch), time.Second, 10*time.Millisecond)
}

func TestDeleteSessionWakesWaiters(t *testing.T) {
	log := zap.NewNop().Sugar()
	svc := New(log, position.NewEngine(log), nil)
	defer svc.Shutdown(time.Second)

	sess := svc.CreateSession("", false)
	ch := svc.Waiter().RegisterWait(sess.ID, sess.Seq(), context.Background())

	require.NoError(t, svc.DeleteSession(sess.ID))
	require.Eventually(t, woken(svc.Waiter(), sess.ID, ch), time.Second, 10*time.Millisecond)

	_, err := svc.GetSession(sess.ID)
	require.Error(t, err)
}
