package deployment

import (
	"maps"
	"time"
)

// Blocklist keeps versions that failed to launch until their entry expires.
// It is owned by the pipeline goroutine and not safe for concurrent use.
type Blocklist struct {
	entries  map[string]time.Time
	duration time.Duration
	now      func() time.Time
}

// NewBlocklist creates a blocklist whose entries last for duration.
// A zero duration disables it: Add becomes a no-op.
func NewBlocklist(duration time.Duration, now func() time.Time) *Blocklist {
	if now == nil {
		now = time.Now
	}

	return &Blocklist{
		entries:  make(map[string]time.Time),
		duration: duration,
		now:      now,
	}
}

// Enabled reports whether failed versions are recorded.
func (b *Blocklist) Enabled() bool {
	return b.duration > 0
}

// Add blocklists version until now+duration and returns the expiry.
func (b *Blocklist) Add(version string) time.Time {
	if !b.Enabled() {
		return time.Time{}
	}

	until := b.now().Add(b.duration)
	b.entries[version] = until

	return until
}

// Contains reports whether version is blocklisted right now.
// Expired entries are dropped on lookup.
func (b *Blocklist) Contains(version string) bool {
	until, ok := b.entries[version]
	if !ok {
		return false
	}

	if b.now().After(until) {
		delete(b.entries, version)
		return false
	}

	return true
}

// Restore loads persisted entries, skipping those already expired.
func (b *Blocklist) Restore(entries map[string]time.Time) {
	now := b.now()

	for version, until := range entries {
		if until.After(now) {
			b.entries[version] = until
		}
	}
}

// Entries returns a copy of the entries for persistence.
func (b *Blocklist) Entries() map[string]time.Time {
	return maps.Clone(b.entries)
}
