// Package destroyq implements the frame-delayed destruction queue that
// decouples "no longer needed" from "safe to free": a resource handed here is
// only torn down after enough frames have elapsed that asynchronous hardware
// work referencing it can no longer be outstanding.
package destroyq

// pending is one scheduled teardown.
type pending struct {
	remaining uint32
	destroy   func()
}

// Queue owns each scheduled destructor from the moment it is deferred until
// its delay elapses. Single-threaded; processed once per frame at a safe
// point.
type Queue struct {
	items []pending
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Defer schedules destroy to run after at least frameDelay subsequent calls
// to ProcessFrame. A frameDelay of 0 destroys on the next ProcessFrame call,
// not immediately: destruction never races the call that scheduled it within
// the same frame.
//
// The delay is caller-trusted: the queue does not verify it against actual
// device-side completion, so choosing a delay shorter than the device's
// in-flight frame count is a caller error the system cannot detect.
func (q *Queue) Defer(destroy func(), frameDelay uint32) {
	if destroy == nil {
		return
	}
	q.items = append(q.items, pending{remaining: frameDelay, destroy: destroy})
}

// ProcessFrame advances every pending item by one frame and invokes the
// destructors whose delay has elapsed. Items becoming due on the same frame
// run in their original enqueue order. Returns the number of destructors
// invoked.
func (q *Queue) ProcessFrame() int {
	if len(q.items) == 0 {
		return 0
	}
	// Settle the queue state before invoking anything: a destructor may
	// legally Defer follow-up teardowns, which must land in the next cycle.
	var due []func()
	kept := make([]pending, 0, len(q.items))
	for _, it := range q.items {
		if it.remaining == 0 {
			due = append(due, it.destroy)
			continue
		}
		it.remaining--
		kept = append(kept, it)
	}
	q.items = kept
	for _, destroy := range due {
		destroy()
	}
	return len(due)
}

// Len returns the number of destructors still pending.
func (q *Queue) Len() int {
	return len(q.items)
}

// Drain invokes every remaining destructor immediately, in enqueue order.
// Used at shutdown, after the device has gone idle.
func (q *Queue) Drain() int {
	items := q.items
	q.items = nil
	for _, it := range items {
		it.destroy()
	}
	return len(items)
}
