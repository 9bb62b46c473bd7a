// Package taskqueue provides a budget-aware priority queue for schedulable
// GPU-bound work items. Admission is controlled against a per-frame time
// budget with strict (reject-on-overflow) and lenient (accept-with-warning)
// policies; execution drains in descending priority with stable ties.
package taskqueue

import (
	"math"
	"sort"
)

// OverflowMode selects the admission policy when the budget would be
// exceeded.
type OverflowMode int

const (
	// Strict rejects any item that would push the running total past the
	// budget; queue state is unchanged on rejection.
	Strict OverflowMode = iota
	// Lenient accepts every item; overruns fire the warning callback.
	Lenient
)

func (m OverflowMode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// Budget is the per-frame admission limit.
type Budget struct {
	GPUTimeBudgetNs uint64
	Mode            OverflowMode
}

// WarnFunc is invoked in Lenient mode when an accepted item pushes the
// running total past the budget.
type WarnFunc func(newTotalNs, budgetNs, itemCostNs uint64)

// Slot carries one work item with its scheduling metadata. Slots are owned
// exclusively by the queue that accepted them and moved out during Drain.
type Slot[T any] struct {
	Data            T
	EstimatedCostNs uint64
	// Priority orders execution: 0 is lowest, 255 highest.
	Priority uint8

	insertionOrder uint64
}

// Queue is a budget-aware priority queue. It is single-threaded by design:
// host scheduling is frame-synchronous and cooperative, so no locking is
// required.
type Queue[T any] struct {
	budget    Budget
	warn      WarnFunc
	slots     []Slot[T]
	totalNs   uint64
	nextOrder uint64
}

// New creates a queue with the given budget.
func New[T any](budget Budget) *Queue[T] {
	return &Queue[T]{budget: budget}
}

// SetWarnFunc registers the lenient-mode overflow callback.
func (q *Queue[T]) SetWarnFunc(fn WarnFunc) {
	q.warn = fn
}

// Budget returns the configured budget.
func (q *Queue[T]) Budget() Budget {
	return q.budget
}

// TryEnqueue offers an item for admission. In Strict mode the item is
// accepted only if runningTotal + estimatedCostNs <= budget; on rejection the
// queue state is unchanged and false is returned, with no partial
// acceptance. In Lenient mode the item is always accepted; if the new running
// total exceeds the budget, the registered warning callback fires with
// (newTotal, budget, itemCost) and the enqueue still succeeds.
//
// A false return is the expected signaling mechanism, not an error condition;
// callers must check it.
func (q *Queue[T]) TryEnqueue(data T, estimatedCostNs uint64, priority uint8) bool {
	// Overflow-safe addition: a cost that would wrap the running total can
	// never fit any budget.
	if estimatedCostNs > math.MaxUint64-q.totalNs {
		if q.budget.Mode == Strict {
			return false
		}
		q.accept(data, estimatedCostNs, priority)
		q.totalNs = math.MaxUint64
		if q.warn != nil {
			q.warn(q.totalNs, q.budget.GPUTimeBudgetNs, estimatedCostNs)
		}
		return true
	}

	newTotal := q.totalNs + estimatedCostNs
	if q.budget.Mode == Strict && newTotal > q.budget.GPUTimeBudgetNs {
		return false
	}

	q.accept(data, estimatedCostNs, priority)
	q.totalNs = newTotal
	if q.budget.Mode == Lenient && newTotal > q.budget.GPUTimeBudgetNs && q.warn != nil {
		q.warn(newTotal, q.budget.GPUTimeBudgetNs, estimatedCostNs)
	}
	return true
}

// EnqueueUnchecked bypasses budget accounting entirely; the item's cost is
// treated as zero. This exists for callers that never opted into budgeting
// (and for mandatory work such as presentation).
func (q *Queue[T]) EnqueueUnchecked(data T, priority uint8) {
	q.accept(data, 0, priority)
}

func (q *Queue[T]) accept(data T, costNs uint64, priority uint8) {
	q.slots = append(q.slots, Slot[T]{
		Data:            data,
		EstimatedCostNs: costNs,
		Priority:        priority,
		insertionOrder:  q.nextOrder,
	})
	q.nextOrder++
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.slots)
}

// RunningTotal returns the accumulated estimated cost of accepted items.
func (q *Queue[T]) RunningTotal() uint64 {
	return q.totalNs
}

// GetRemainingBudget returns max(0, budget - runningTotal).
func (q *Queue[T]) GetRemainingBudget() uint64 {
	if q.totalNs >= q.budget.GPUTimeBudgetNs {
		return 0
	}
	return q.budget.GPUTimeBudgetNs - q.totalNs
}

// Drain moves every queued item out of the queue and invokes fn for each, in
// descending priority order; items of equal priority preserve relative
// insertion order. This determinism is required for reproducible frame timing
// across runs with identical enqueue sequences. The running total is kept
// until Clear so remaining-budget queries stay meaningful for the frame.
func (q *Queue[T]) Drain(fn func(Slot[T])) {
	if len(q.slots) == 0 {
		return
	}
	slots := q.slots
	q.slots = nil
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Priority != slots[j].Priority {
			return slots[i].Priority > slots[j].Priority
		}
		return slots[i].insertionOrder < slots[j].insertionOrder
	})
	for _, s := range slots {
		fn(s)
	}
}

// Clear resets the running total and drops all queued items. Called at frame
// boundaries.
func (q *Queue[T]) Clear() {
	q.slots = nil
	q.totalNs = 0
}
