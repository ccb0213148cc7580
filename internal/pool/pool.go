// Package pool provides a small executor abstraction for easily switching
// between running work inline and on a fixed pool of workers.
package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by tasks submitted after Close.
var ErrClosed = errors.New("pool: executor closed")

// Task is the pending result of a submitted function.
type Task struct {
	done chan struct{}
	val  any
	err  error
}

func newTask() *Task { return &Task{done: make(chan struct{})} }

func (t *Task) complete(val any, err error) {
	t.val = val
	t.err = err
	close(t.done)
}

// Wait blocks until the task finishes or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Executor runs submitted functions. Close waits for in-flight work.
type Executor interface {
	Submit(fn func() (any, error)) *Task
	Close()
}

// New returns an executor with the given number of workers. Zero workers
// means no pool at all: functions run inline during Submit.
func New(workers int) Executor {
	if workers <= 0 {
		return &inline{}
	}
	p := &workerPool{tasks: make(chan boundTask)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

// inline runs every function synchronously at submission time.
type inline struct {
	mu     sync.Mutex
	closed bool
}

func (e *inline) Submit(fn func() (any, error)) *Task {
	t := newTask()
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		t.complete(nil, ErrClosed)
		return t
	}
	val, err := fn()
	t.complete(val, err)
	return t
}

func (e *inline) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

type boundTask struct {
	fn   func() (any, error)
	task *Task
}

type workerPool struct {
	tasks chan boundTask
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func (p *workerPool) run() {
	defer p.wg.Done()
	for bt := range p.tasks {
		val, err := bt.fn()
		bt.task.complete(val, err)
	}
}

func (p *workerPool) Submit(fn func() (any, error)) *Task {
	t := newTask()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		t.complete(nil, ErrClosed)
		return t
	}
	// Hold the lock across the send so Close cannot close the channel
	// between the check and the send.
	p.tasks <- boundTask{fn: fn, task: t}
	p.mu.Unlock()
	return t
}

func (p *workerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
