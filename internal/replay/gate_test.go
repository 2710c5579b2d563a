package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

func TestGate_OpenDoesNotBlock(t *testing.T) {
	g := NewGate()
	blocked, err := g.Wait(context.Background(), func() { t.Fatal("onPause called on open gate") })
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestGate_PauseResume(t *testing.T) {
	g := NewGate()
	require.True(t, g.Pause())
	assert.False(t, g.Pause(), "already paused")
	assert.True(t, g.Paused())

	entered := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		blocked, err := g.Wait(context.Background(), func() { close(entered) })
		assert.True(t, blocked)
		done <- err
	}()

	<-entered
	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}
	require.True(t, g.Resume())
	assert.False(t, g.Resume(), "already running")
	require.NoError(t, <-done)
}

func TestGate_StopReleasesPausedWaiter(t *testing.T) {
	g := NewGate()
	g.Pause()
	entered := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := g.Wait(context.Background(), func() { close(entered) })
		done <- err
	}()
	<-entered
	g.Stop()
	g.Stop()
	assert.ErrorIs(t, <-done, ErrStopped)
	assert.True(t, g.Stopped())
	assert.False(t, g.Paused())
	assert.False(t, g.Pause(), "cannot pause a stopped gate")

	select {
	case <-g.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestGate_ContextCancelReleasesWaiter(t *testing.T) {
	g := NewGate()
	g.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked, err := g.Wait(ctx, nil)
	assert.True(t, blocked)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGate_Toggle(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Toggle())
	assert.True(t, g.Paused())
	assert.False(t, g.Toggle())
	assert.False(t, g.Paused())
	g.Stop()
	assert.False(t, g.Toggle())
}

func TestRunModes(t *testing.T) {
	t.Run("bounded to end", func(t *testing.T) {
		var visited []int
		m := Bounded{Start: 2}
		i, err := m.first(5)
		require.NoError(t, err)
		for ok := true; ok; i, _, ok = m.next(i, 5) {
			visited = append(visited, i)
		}
		assert.Equal(t, []int{2, 3, 4}, visited)
	})

	t.Run("bounded count past end is clamped", func(t *testing.T) {
		m := Bounded{Start: 3, Count: 10}
		_, _, ok := m.next(4, 5)
		assert.False(t, ok)
	})

	t.Run("continuous wraps", func(t *testing.T) {
		m := Continuous{Start: 1}
		next, wrapped, ok := m.next(2, 3)
		assert.True(t, ok)
		assert.True(t, wrapped)
		assert.Equal(t, 0, next)
		next, wrapped, _ = m.next(0, 3)
		assert.False(t, wrapped)
		assert.Equal(t, 1, next)
	})

	t.Run("invalid start", func(t *testing.T) {
		_, err := Bounded{Start: -1}.first(3)
		assert.Error(t, err)
		_, err = Continuous{}.first(0)
		assert.ErrorContains(t, err, "no rows")
		_, err = Bounded{Count: -1}.first(3)
		assert.Error(t, err)
	})

	t.Run("from name", func(t *testing.T) {
		m, err := ModeFor("continuous", 4)
		require.NoError(t, err)
		assert.Equal(t, Continuous{Start: 4}, m)
		assert.Equal(t, schemas.ModeContinuous, m.Kind())

		m, err = ModeFor("", 0)
		require.NoError(t, err)
		assert.Equal(t, schemas.ModeBounded, m.Kind())

		_, err = ModeFor("forever", 0)
		assert.Error(t, err)
	})
}
