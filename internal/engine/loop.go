package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoopClosed is returned when work is submitted to a loop that has stopped.
var ErrLoopClosed = errors.New("loop closed")

// Loop is a FIFO task queue drained by a single goroutine. Every task runs to
// completion before the next one starts, so state touched only from tasks
// needs no locking.
type Loop struct {
	mu          sync.Mutex
	cond        *sync.Cond
	queue       []func()
	running     bool // a task is executing
	outstanding int  // Go and After work not yet posted back
	closed      bool
}

// NewLoop creates an idle loop. Call Run to start draining it.
func NewLoop() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post enqueues fn. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Broadcast()
	return true
}

// Call enqueues fn and waits for it to finish. It must not be called from a
// task.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go runs work on its own goroutine and posts the continuation it returns.
// A nil continuation is skipped. Settle waits for outstanding work.
func (l *Loop) Go(work func() func()) {
	if !l.begin() {
		return
	}
	go func() {
		next := work()
		l.finish(next)
	}()
}

// After posts fn once d has elapsed. Settle waits for the timer.
func (l *Loop) After(d time.Duration, fn func()) {
	if !l.begin() {
		return
	}
	time.AfterFunc(d, func() { l.finish(fn) })
}

func (l *Loop) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.outstanding++
	return true
}

func (l *Loop) finish(next func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outstanding--
	if next != nil && !l.closed {
		l.queue = append(l.queue, next)
	}
	l.cond.Broadcast()
}

// Run drains the queue until ctx is cancelled. Tasks still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			l.mu.Unlock()
			return ctx.Err()
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.running = true
		l.mu.Unlock()

		task()

		l.mu.Lock()
		l.running = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// Settle blocks until the loop is quiescent: nothing queued, nothing
// running, and no Go or After work outstanding.
func (l *Loop) Settle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) > 0 || l.running || l.outstanding > 0 {
		if l.closed {
			return ErrLoopClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		l.cond.Wait()
	}
	return nil
}
