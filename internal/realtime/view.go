package realtime

import (
	"sync"

	"github.com/mcoot/estimategame/internal/model"
)

// View is an observer's local copy of a session. Apply always replaces the
// whole state, so duplicate or re-delivered snapshots change nothing.
type View struct {
	mu       sync.RWMutex
	snapshot *model.Snapshot
}

// NewView creates an empty view
func NewView() *View {
	return &View{}
}

// Apply replaces the local state with the snapshot unless it is older than
// what the view already holds. Reports whether the snapshot was taken.
func (v *View) Apply(snapshot model.Snapshot) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.snapshot != nil && snapshot.Version < v.snapshot.Version {
		return false
	}
	v.snapshot = &snapshot
	return true
}

// Reset forgets the local state, before a resync
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshot = nil
}

// Current returns the local state, or false if nothing was applied yet
func (v *View) Current() (model.Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.snapshot == nil {
		return model.Snapshot{}, false
	}
	return *v.snapshot, true
}
