package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop()
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l, _ := runLoop(t)

	var got []int
	for i := range 50 {
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Settle(context.Background()))

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopTasksPostingTasks(t *testing.T) {
	l := NewLoop()

	var order []string
	l.Post(func() {
		order = append(order, "a")
		l.Post(func() { order = append(order, "c") })
	})
	l.Post(func() { order = append(order, "b") })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	require.NoError(t, l.Settle(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestLoopCall(t *testing.T) {
	l, _ := runLoop(t)

	var ran bool
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoopGoPostsContinuation(t *testing.T) {
	l, _ := runLoop(t)

	var onLoop atomic.Int32
	release := make(chan struct{})
	l.Go(func() func() {
		<-release
		return func() { onLoop.Add(1) }
	})

	settled := make(chan error, 1)
	go func() { settled <- l.Settle(context.Background()) }()

	select {
	case <-settled:
		t.Fatal("settled while work was outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-settled)
	assert.Equal(t, int32(1), onLoop.Load())
}

func TestLoopAfter(t *testing.T) {
	l, _ := runLoop(t)

	var fired atomic.Bool
	l.After(10*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, l.Settle(context.Background()))
	assert.True(t, fired.Load())
}

func TestLoopClosed(t *testing.T) {
	l, cancel := runLoop(t)
	cancel()

	require.Eventually(t, func() bool { return !l.Post(func() {}) }, time.Second, time.Millisecond)
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrLoopClosed)
}

func TestLoopSettleHonoursContext(t *testing.T) {
	l, _ := runLoop(t)

	block := make(chan struct{})
	defer close(block)
	l.Post(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Settle(ctx), context.DeadlineExceeded)
}
