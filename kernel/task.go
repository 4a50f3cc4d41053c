package kernel

import "reflect"

// Task is a handle a cooperative task uses to suspend itself. Tasks never
// touch the heap directly; every suspension goes through Wait/After/AnyOf/
// AllOf, which register with the kernel and then block on a private
// channel until the kernel resumes them.
type Task struct {
	k *Kernel
	// interruptSlot is the channel (if any) whose closing would deliver an
	// interruption to whatever suspension point t is currently blocked in.
	// nil when t is not currently suspended.
	interruptSlot chan struct{}
	// Defused, when true, makes Interrupt a no-op (spec.md §5: "the old
	// task is marked defused so its interruption is a no-op"). Used when a
	// car's "release crossing lanes" timer is superseded by a new speed
	// change before the old timer fires.
	Defused bool
}

// suspend registers resumeCh (already enqueued onto the kernel heap or a
// waiter list by the caller) and blocks until it fires or t is interrupted.
// Whichever of resumeCh/intrCh does not win is drained: it may still be
// closed later (the event it belongs to can fire after this task has
// already moved on via the other branch), and nothing else would consume
// that close.
func (t *Task) suspend(resumeCh chan struct{}) error {
	intrCh := t.k.wake()
	t.interruptSlot = intrCh
	t.k.turnDone <- struct{}{}
	select {
	case <-resumeCh:
		t.interruptSlot = nil
		t.k.drain(intrCh)
		return nil
	case <-intrCh:
		t.interruptSlot = nil
		t.k.drain(resumeCh)
		return ErrInterrupted
	}
}

// Interrupt delivers an interruption to t at its current suspension point.
// A no-op if t is not currently suspended, or if t.Defused.
func (k *Kernel) Interrupt(t *Task) {
	if t.Defused {
		return
	}
	slot := t.interruptSlot
	if slot == nil {
		return
	}
	t.interruptSlot = nil
	k.schedule(k.now, slot, nil, nil)
}

// AnyOf suspends t until the first of events fires, returning its index.
// Already-triggered events resolve immediately without suspending.
// Non-winning branches are abandoned per spec.md §5 ("implicitly
// cancelled"): if they fire later, nothing observes it.
func (k *Kernel) AnyOf(t *Task, events ...*Event) (int, error) {
	for i, e := range events {
		if e.triggered {
			return i, nil
		}
	}
	chans := make([]chan struct{}, len(events))
	for i, e := range events {
		ch := k.wake()
		chans[i] = ch
		e.waiters = append(e.waiters, ch)
	}
	intrCh := k.wake()
	t.interruptSlot = intrCh
	k.turnDone <- struct{}{}

	cases := make([]reflect.SelectCase, 0, len(chans)+1)
	for _, ch := range chans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(intrCh)})
	chosen, _, _ := reflect.Select(cases)
	t.interruptSlot = nil

	// Every branch but the winner is abandoned (spec.md §5, "implicitly
	// cancelled"): drain each so a later close of its underlying event
	// doesn't leave Run waiting on a turnDone nobody will send.
	for i, ch := range chans {
		if i != chosen {
			k.drain(ch)
		}
	}
	if chosen != len(chans) {
		k.drain(intrCh)
	}

	if chosen == len(chans) {
		return -1, ErrInterrupted
	}
	return chosen, nil
}

// AllOf suspends t until every event in events has fired.
func (k *Kernel) AllOf(t *Task, events ...*Event) error {
	for _, e := range events {
		if err := k.Wait(t, e); err != nil {
			return err
		}
	}
	return nil
}
