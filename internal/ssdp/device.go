package ssdp

import (
	"sync"
	"time"
)

// Device is a single entry in the SSDP device table, keyed by USN. It
// mirrors the bookkeeping SsdpService kept per advertised service in the
// source: location, expiry, and the raw headers of the last NOTIFY/reply
// that refreshed it.
type Device struct {
	USN       string
	NT        string
	Location  string
	Server    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// Expired reports whether this entry's CACHE-CONTROL max-age has elapsed.
func (d Device) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// Table is a concurrency-safe USN -> Device map with expiry sweeping.
type Table struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewTable returns an empty device table.
func NewTable() *Table {
	return &Table{devices: make(map[string]Device)}
}

// Upsert inserts or refreshes a device entry, returning true if this USN
// was not previously known (a "join").
func (t *Table) Upsert(d Device) (isNew bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, existed := t.devices[d.USN]
	t.devices[d.USN] = d
	return !existed
}

// Remove deletes a device entry (ssdp:byebye), returning true if it was
// present.
func (t *Table) Remove(usn string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, existed := t.devices[usn]
	delete(t.devices, usn)
	return existed
}

// Get returns a device entry by USN.
func (t *Table) Get(usn string) (Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.devices[usn]
	return d, ok
}

// All returns a snapshot of every known device.
func (t *Table) All() []Device {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Device, 0, len(t.devices))
	for _, d := range t.devices {
		out = append(out, d)
	}
	return out
}

// Sweep removes every entry whose max-age has expired as of now, returning
// the USNs removed. Callers use this to emit OFFLINE/LEAVE events for
// cache timeouts that never received an explicit ssdp:byebye.
func (t *Table) Sweep(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []string
	for usn, d := range t.devices {
		if d.Expired(now) {
			delete(t.devices, usn)
			removed = append(removed, usn)
		}
	}
	return removed
}
