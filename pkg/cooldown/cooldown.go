// Package cooldown keeps per-device suppression state so a disk that
// recently failed to answer a probe is not asked again right away. Repeated
// probing of a disk that is spinning up defeats the power saving this
// exporter exists to measure, so timeouts trip a coarse time-based breaker.
package cooldown

import (
	"sync"
	"time"
)

type entry struct {
	until     time.Time
	lastCode  int
	haveState bool
}

// Tracker is shared by all concurrently running probes; one mutex is plenty
// for dozens of devices. State is in-memory only and resets on restart.
type Tracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	entries  map[string]entry
}

func NewTracker(cooldown time.Duration) *Tracker {
	return &Tracker{
		cooldown: cooldown,
		entries:  make(map[string]entry),
	}
}

// IsEligible reports whether a device may be probed now. Entries lapse
// lazily; nothing ever needs to delete them on a timer.
func (t *Tracker) IsEligible(id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return true
	}

	return !now.Before(e.until)
}

// RecordTimeout starts or refreshes the cooldown window for a device.
func (t *Tracker) RecordTimeout(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entries[id]
	e.until = now.Add(t.cooldown)
	t.entries[id] = e
}

// RecordSuccess clears any pending cooldown and caches the observed state so
// a later skipped scrape can report something better than unknown. A
// successful probe never extends a cooldown.
func (t *Tracker) RecordSuccess(id string, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[id] = entry{lastCode: code, haveState: true}
}

// LastKnownState returns the most recent definitive state for a device, if
// one was ever observed.
func (t *Tracker) LastKnownState(id string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || !e.haveState {
		return 0, false
	}

	return e.lastCode, true
}
