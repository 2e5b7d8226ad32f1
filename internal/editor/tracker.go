// Package editor holds the client-side state of one editing session: the
// set of uploads not yet referenced by saved content, and the state machine
// that decides their fate when the session ends.
package editor

import "sync"

// Tracker is the pending-upload set for a single editing session.
// The zero value is not usable; call NewTracker.
type Tracker struct {
	mu    sync.Mutex
	order []string
	keys  map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{keys: make(map[string]struct{})}
}

// Record adds key to the pending set.
func (t *Tracker) Record(key string) {
	if key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.keys[key]; ok {
		return
	}
	t.keys[key] = struct{}{}
	t.order = append(t.order, key)
}

// Release forgets key without touching the blob.
func (t *Tracker) Release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.keys[key]; !ok {
		return
	}
	delete(t.keys, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// ReleaseAll empties the pending set.
func (t *Tracker) ReleaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = make(map[string]struct{})
	t.order = nil
}

// PendingKeys returns a copy of the pending set in upload order.
func (t *Tracker) PendingKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

func (t *Tracker) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
