// Package executor implements the serialization primitive every
// Transport uses to guarantee that at most one task touching its
// connections or multiplexer runs at a time: a single goroutine draining
// a queue of posted closures.
package executor

import (
	"sync"

	"github.com/opd-ai/rudpcore/logging"
)

// queueDepth is the number of pending tasks the executor will buffer
// before Post starts blocking the caller.
const queueDepth = 256

// Executor runs posted tasks one at a time, in the order they were
// posted, on a single internal goroutine.
type Executor struct {
	tasks chan func()

	closeOnce sync.Once
	done      chan struct{}
}

// New starts an Executor's drain goroutine and returns it ready for use.
func New() *Executor {
	e := &Executor{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	log := logging.NewLogger("executor", "run")
	log.Debug("executor started")
	for task := range e.tasks {
		task()
	}
	close(e.done)
	log.Debug("executor drained and stopped")
}

// Post enqueues task to run on the executor's goroutine. It is safe to
// call from any goroutine. Post is a no-op once the executor has been
// closed.
func (e *Executor) Post(task func()) {
	defer func() {
		// Close closes the tasks channel; a Post racing a concurrent Close
		// can observe a closed channel and would otherwise panic.
		_ = recover()
	}()
	select {
	case e.tasks <- task:
	case <-e.done:
	}
}

// Close stops accepting new tasks and waits for the queue to drain. It is
// idempotent.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.tasks)
	})
	<-e.done
}
