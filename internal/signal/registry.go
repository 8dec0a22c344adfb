// Package signal orchestrates pattern detection into scored, validated
// trading signals.
package signal

import (
	"sync"
	"time"

	"ashare-trader/internal/models"
)

// Registry is the explicitly-owned set of active signals. All mutation goes
// through it; expiry and duplicate suppression are serialized under a single
// writer lock.
type Registry struct {
	mu      sync.RWMutex
	signals map[string]*models.TradingSignal // keyed by signal ID
	expiry  time.Duration
}

// NewRegistry creates a registry whose signals live for the given duration.
func NewRegistry(expiry time.Duration) *Registry {
	return &Registry{
		signals: make(map[string]*models.TradingSignal),
		expiry:  expiry,
	}
}

// Add inserts a signal unless an unexpired signal with the same symbol and
// direction is already active. Returns false when suppressed as a duplicate.
func (r *Registry) Add(sig *models.TradingSignal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.signals {
		if existing.Symbol == sig.Symbol && existing.Direction == sig.Direction && existing.IsFresh(r.expiry) {
			return false
		}
	}
	r.signals[sig.ID] = sig
	return true
}

// PurgeExpired drops signals older than the registry expiry and returns how
// many were removed.
func (r *Registry) PurgeExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, sig := range r.signals {
		if !sig.IsFresh(r.expiry) {
			delete(r.signals, id)
			removed++
		}
	}
	return removed
}

// Remove deletes a signal by ID, typically on consumption.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signals, id)
}

// Get returns the signal with the given ID, or nil.
func (r *Registry) Get(id string) *models.TradingSignal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.signals[id]
}

// Active returns a snapshot of all active signals.
func (r *Registry) Active() []*models.TradingSignal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.TradingSignal, 0, len(r.signals))
	for _, sig := range r.signals {
		out = append(out, sig)
	}
	return out
}

// Len returns the number of active signals.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signals)
}
