// Package budget provides the shared cost tracker with reserve/commit
// semantics, model pricing, and pre-run cost estimation. One tracker serves
// an entire pipeline tree: nested sub-pipelines share the parent's instance.
package budget

import (
	"fmt"
	"sync"
)

// BudgetExceededError is raised by CheckBudget when reserved plus spent
// funds pass the limit. The engine treats it as fatal.
type BudgetExceededError struct {
	LimitUSD     float64
	SpentUSD     float64
	CommittedUSD float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("pipeline budget exceeded: $%.4f spent + $%.4f reserved > $%.2f limit",
		e.SpentUSD, e.CommittedUSD, e.LimitUSD)
}

// Reservation is a handle for an in-flight spend estimate. It is finalized
// with the actual cost or refunded; either transition is terminal.
type Reservation struct {
	id     uint64
	amount float64
}

// Tracker accumulates LLM spend for one pipeline tree. Safe for concurrent
// use by parallel task agents.
type Tracker struct {
	mu        sync.Mutex
	spent     float64
	committed float64
	open      map[uint64]float64
	nextID    uint64
}

func NewTracker() *Tracker {
	return &Tracker{open: make(map[uint64]float64)}
}

// Reserve sets aside an expected upper bound for an upcoming model call.
func (t *Tracker) Reserve(estimateUSD float64) *Reservation {
	if estimateUSD < 0 {
		estimateUSD = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	res := &Reservation{id: t.nextID, amount: estimateUSD}
	t.open[res.id] = estimateUSD
	t.committed += estimateUSD
	return res
}

// Finalize releases the reservation and records the actual cost as spent.
func (t *Tracker) Finalize(res *Reservation, actualUSD float64) {
	if res == nil {
		return
	}
	if actualUSD < 0 {
		actualUSD = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if reserved, ok := t.open[res.id]; ok {
		t.committed -= reserved
		delete(t.open, res.id)
	}
	t.spent += actualUSD
}

// Refund releases the reservation without recording any spend.
func (t *Tracker) Refund(res *Reservation) {
	if res == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if reserved, ok := t.open[res.id]; ok {
		t.committed -= reserved
		delete(t.open, res.id)
	}
}

// CheckBudget fails fast once spent plus committed funds exceed the limit.
// A limit of zero or below means unlimited.
func (t *Tracker) CheckBudget(limitUSD float64) error {
	if limitUSD <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.spent+t.committed > limitUSD {
		return &BudgetExceededError{
			LimitUSD:     limitUSD,
			SpentUSD:     t.spent,
			CommittedUSD: t.committed,
		}
	}
	return nil
}

func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

func (t *Tracker) Committed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}
