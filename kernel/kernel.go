// Package kernel implements the discrete-event scheduler (spec.md §4.1):
// a min-heap of (time, sequence, task) triples driving a pool of
// cooperative tasks that suspend on timeouts or on named events.
//
// The kernel itself is logically single-threaded: at most one task's
// application code ever executes at a time. Tasks are ordinary goroutines,
// but the kernel only ever lets one of them run between two consecutive
// suspension points, using a rendezvous channel (turnDone) to serialize
// hand-off — the same "one resume at a time, FIFO among equal-time items"
// discipline the teacher's tick-based loop (clock/clock.go, task/task.go)
// enforces for its own per-step updates, adapted here to an event-driven
// loop instead of a fixed-interval one.
package kernel

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roadsim-go/utils/container"
)

var log = logrus.WithField("module", "kernel")

// ErrInterrupted is returned by a suspension point that was woken by
// Interrupt rather than by its own timeout or event.
var ErrInterrupted = errors.New("kernel: task interrupted")

// wakePayload is one entry of the kernel's scheduling heap: exactly one of
// ch/launch/immediate is set, ordered by time with the wrapped
// container.PriorityQueue's seq tie-break giving FIFO among equal-time
// items, per the §4.1 ordering contract.
type wakePayload struct {
	ch        chan struct{} // non-nil: close this channel to resume a waiting task
	launch    func()        // non-nil: spawn a new task's first run
	immediate func()        // non-nil: run synchronously, no task resumption implied
}

// Kernel owns the simulated clock and the scheduling heap. Create one per
// simulation run; nothing in it survives past Run returning (spec.md §9,
// "Global mutable state").
type Kernel struct {
	now      float64
	heap     container.PriorityQueue[wakePayload]
	turnDone chan struct{}
}

// New creates an empty kernel with the clock at t=0.
func New() *Kernel {
	return &Kernel{turnDone: make(chan struct{})}
}

// Now returns the current simulated time, in seconds.
func (k *Kernel) Now() float64 { return k.now }

func (k *Kernel) schedule(t float64, ch chan struct{}, launch func(), immediate func()) {
	k.heap.HeapPush(wakePayload{ch: ch, launch: launch, immediate: immediate}, t)
}

// wake creates a fresh one-shot channel for a single suspension point.
// Closing it is how Run hands control to whichever select is blocked on
// it; nothing consumes it automatically. The task's own goroutine, once
// its select resolves, runs synchronously and reports back to Run by
// reaching its next suspend() (which sends turnDone on entry, same as
// StartDelayed's launch goroutine does when fn returns) or by
// returning — never via a generic forwarder racing the real resume.
func (k *Kernel) wake() chan struct{} {
	return make(chan struct{})
}

// drain spawns a trivial consumer for ch: once ch closes, it forwards
// exactly one turnDone signal. Used only for channels a caller has
// already determined will never be observed by a live select — an
// abandoned AnyOf branch, or the losing side of a suspend()'s
// resumeCh/interrupt race (spec.md §5, "implicitly cancelled") — so
// Run's close-then-wait-for-turnDone protocol still completes for them
// without racing the goroutine a task's own select is actually blocked
// in.
func (k *Kernel) drain(ch chan struct{}) {
	go func() {
		<-ch
		k.turnDone <- struct{}{}
	}()
}

// Spawn launches fn as a new cooperative task starting at the current time.
func (k *Kernel) Spawn(fn func(t *Task)) {
	k.StartDelayed(fn, 0)
}

// StartDelayed schedules fn's first suspension point at now+dt (spec.md
// §4.1, start_delayed).
func (k *Kernel) StartDelayed(fn func(t *Task), dt float64) {
	task := &Task{k: k}
	k.schedule(k.now+dt, nil, func() {
		go func() {
			fn(task)
			k.turnDone <- struct{}{}
		}()
	}, nil)
}

// Run advances the simulation, processing every scheduled wake-up whose
// time is <= until, then sets the clock to until. Cars still in flight at
// that point are left as-is: neither Run nor the engine package emits a
// final calendar event for them.
func (k *Kernel) Run(until float64) {
	for k.heap.Len() > 0 {
		t := k.heap.PeekPriority()
		if t > until {
			break
		}
		payload, pt := k.heap.HeapPop()
		k.now = pt
		switch {
		case payload.immediate != nil:
			payload.immediate()
		case payload.launch != nil:
			payload.launch()
			<-k.turnDone
		case payload.ch != nil:
			close(payload.ch)
			<-k.turnDone
		default:
			log.Panic("kernel: wake item with no action")
		}
	}
	if until > k.now {
		k.now = until
	}
}
