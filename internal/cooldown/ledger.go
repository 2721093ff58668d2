// Package cooldown suppresses repeated alerts for the same signal key.
package cooldown

import (
	"sync"
	"time"

	"vigil/pkg/model"
)

// Key identifies one alert stream: repeats of the same symbol, timeframe and
// direction inside the cooldown interval are suppressed.
type Key struct {
	Symbol    string
	Timeframe model.Timeframe
	Direction model.Direction
}

// Ledger tracks the last dispatch time per key. State lives for the process
// lifetime only; a restart resets all cooldowns.
type Ledger struct {
	interval time.Duration
	mu       sync.Mutex
	fired    map[Key]time.Time
}

// NewLedger creates a ledger with the given minimum interval between alerts
// for the same key.
func NewLedger(interval time.Duration) *Ledger {
	return &Ledger{
		interval: interval,
		fired:    make(map[Key]time.Time),
	}
}

// MayFire reports whether an alert for key may be dispatched at now: true if
// the key has never fired, or the interval since the last fire has elapsed.
// Reads never mutate the ledger.
func (l *Ledger) MayFire(key Key, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.fired[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= l.interval
}

// RecordFire marks a successful dispatch for key at now. The orchestrator
// calls this only after the alert actually went out, never speculatively.
func (l *Ledger) RecordFire(key Key, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fired[key] = now
}
