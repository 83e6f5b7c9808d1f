package jobs

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger accumulates rewards from completed jobs over the agent's session.
// It is shared between the dispatcher and the telemetry loop.
type Ledger struct {
	mu        sync.Mutex
	total     decimal.Decimal
	completed int
	failed    int
}

func NewLedger() *Ledger {
	return &Ledger{total: decimal.Zero}
}

// Credit records one completed job and its reward, if any.
func (l *Ledger) Credit(reward decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed++
	l.total = l.total.Add(reward)
}

// RecordFailure records one failed job.
func (l *Ledger) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed++
}

// Total returns the accumulated reward amount.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Counts returns the number of completed and failed jobs.
func (l *Ledger) Counts() (completed, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed, l.failed
}
