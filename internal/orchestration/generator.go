package orchestration

import (
	"fmt"

	"github.com/kandev/orchestrator-worker/internal/task"
)

// abandoned is the panic value park() raises to unwind an orchestrator
// goroutine the driver has stopped waiting on.
type abandoned struct{}

// generator drives one orchestrator function body as a goroutine,
// parking it on Await calls that block and waking it once the awaited
// task settles. One generator backs exactly one Executor.Execute call —
// it is never resumed across calls. The next call to the same instance
// replays history from scratch against a fresh generator, the same way
// the rest of the context is rebuilt from scratch each time; this keeps
// replay itself embarrassingly simple at the cost of redoing work the
// orchestrator already did, which is the trade the whole approach makes.
type generator struct {
	wake    chan struct{} // buffered 1: signals the parked goroutine to recheck its task
	parked  chan struct{} // buffered 1: signals the driver that the goroutine has blocked
	abandon chan struct{} // closed once the driver stops waiting
	done    chan struct{} // closed when the orchestrator body returns or is abandoned

	result any
	err    error
}

func newGenerator() *generator {
	return &generator{
		wake:    make(chan struct{}, 1),
		parked:  make(chan struct{}, 1),
		abandon: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// run launches fn. Panics raised for abandonment are swallowed; any other
// panic is converted into an error so a buggy orchestrator body can't
// take the worker process down with it.
func (g *generator) run(fn func() (any, error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abandoned); ok {
					close(g.done)
					return
				}
				if err, ok := r.(error); ok {
					g.err = err
				} else {
					g.err = fmt.Errorf("orchestrator panicked: %v", r)
				}
			}
			close(g.done)
		}()
		g.result, g.err = fn()
	}()
}

// park blocks the orchestrator goroutine until t settles or the driver
// abandons this generator. Call only when t is still pending.
func (g *generator) park(t *task.Task) {
	select {
	case g.parked <- struct{}{}:
	default:
	}

	t.OnSettle(func() {
		select {
		case g.wake <- struct{}{}:
		default:
		}
	})

	select {
	case <-g.wake:
	case <-g.abandon:
		panic(abandoned{})
	}
}
