package testutil

import (
	"sync"

	"github.com/mcoot/estimategame/internal/model"
)

// SnapshotRecorder is a publisher that keeps every snapshot it receives
type SnapshotRecorder struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
}

// NewSnapshotRecorder creates an empty recorder
func NewSnapshotRecorder() *SnapshotRecorder {
	return &SnapshotRecorder{}
}

// Publish records the snapshot
func (r *SnapshotRecorder) Publish(snapshot model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

// Snapshots returns a copy of everything published so far
func (r *SnapshotRecorder) Snapshots() []model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Snapshot(nil), r.snapshots...)
}

// ForSession returns the snapshots published for one session
func (r *SnapshotRecorder) ForSession(id model.SessionID) []model.Snapshot {
	var out []model.Snapshot
	for _, s := range r.Snapshots() {
		if s.SessionID == id {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent snapshot, or false if none
func (r *SnapshotRecorder) Last() (model.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return model.Snapshot{}, false
	}
	return r.snapshots[len(r.snapshots)-1], true
}
