package graph

import "sync"

// Executor runs callbacks on an execution context chosen by the caller.
type Executor interface {
	Dispatch(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Dispatch(fn func()) { f(fn) }

// SyncExecutor runs callbacks immediately on the dispatching goroutine.
var SyncExecutor Executor = ExecutorFunc(func(fn func()) { fn() })

// SerialExecutor runs callbacks one after another, in dispatch order, on
// its own goroutine.
type SerialExecutor struct {
	sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewSerialExecutor starts a SerialExecutor.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

// Dispatch queues fn. Callbacks dispatched after Close are dropped.
func (e *SerialExecutor) Dispatch(fn func()) {
	e.Lock()
	if e.closed {
		e.Unlock()
		return
	}
	e.queue = append(e.queue, fn)
	e.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close runs the callbacks already queued and stops the executor.
func (e *SerialExecutor) Close() {
	e.Lock()
	if e.closed {
		e.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	<-e.done
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for range e.wake {
		for {
			e.Lock()
			if len(e.queue) == 0 {
				closed := e.closed
				e.Unlock()
				if closed {
					return
				}
				break
			}
			fn := e.queue[0]
			e.queue[0] = nil
			e.queue = e.queue[1:]
			e.Unlock()
			fn()
		}
	}
}
