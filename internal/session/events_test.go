package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chesskit/internal/core"
)

func TestBusSubscribeAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	var got []string
	subA := bus.Subscribe(func(ev core.Event) { got = append(got, "a:"+ev.Kind()) })
	subB := bus.Subscribe(func(ev core.Event) { got = append(got, "b:"+ev.Kind()) })

	bus.publish(core.PgnNavigated{})
	require.ElementsMatch(t, []string{"a:pgn_navigated", "b:pgn_navigated"}, got)

	got = nil
	subA.Unsubscribe()
	bus.publish(core.MoveMade{})
	require.Equal(t, []string{"b:move_made"}, got)

	subB.Unsubscribe()
	// Unsubscribe is idempotent
	subB.Unsubscribe()
	subA.Unsubscribe()

	got = nil
	bus.publish(core.MoveMade{})
	require.Empty(t, got)
}

func TestPromotionFlowLifecycle(t *testing.T) {
	f := NewPromotionFlow()

	_, _, _, ok := f.Pending()
	require.False(t, ok)

	var observed []string
	f.Observe(func(origin, dest string, color core.Color) {
		observed = append(observed, origin+dest+color.String())
	})

	var resolvedRole core.PromotionRole
	var resolvedChosen bool
	resolve := func(role core.PromotionRole, chosen bool) {
		resolvedRole = role
		resolvedChosen = chosen
	}

	require.NoError(t, f.Start("e7", "e8", core.ColorWhite, resolve))
	require.Equal(t, []string{"e7e8w"}, observed)

	origin, dest, color, ok := f.Pending()
	require.True(t, ok)
	require.Equal(t, "e7", origin)
	require.Equal(t, "e8", dest)
	require.Equal(t, core.ColorWhite, color)

	// Only one choice may be pending
	require.ErrorIs(t, f.Start("a7", "a8", core.ColorWhite, resolve), ErrPromotionPending)

	require.NoError(t, f.Finish(core.PromoteRook))
	require.Equal(t, core.PromoteRook, resolvedRole)
	require.True(t, resolvedChosen)
	_, _, _, ok = f.Pending()
	require.False(t, ok)

	// Resolving again fails
	require.ErrorIs(t, f.Finish(core.PromoteQueen), ErrNoPromotion)
	require.ErrorIs(t, f.Cancel(), ErrNoPromotion)
}

func TestPromotionFlowCancel(t *testing.T) {
	f := NewPromotionFlow()

	called := false
	require.NoError(t, f.Start("b2", "b1", core.ColorBlack, func(role core.PromotionRole, chosen bool) {
		called = true
		require.False(t, chosen)
	}))

	require.NoError(t, f.Cancel())
	require.True(t, called)
	_, _, _, ok := f.Pending()
	require.False(t, ok)
}
