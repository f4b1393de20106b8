// Package status tracks the observable state of a full-index run. One
// Tracker belongs to exactly one Spider; only the indexing path mutates it,
// everyone else reads snapshots or subscribes.
package status

import "sync"

// Phase is the coarse state of the indexing state machine.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseCounting Phase = "counting"
	PhaseIndexing Phase = "indexing"
	PhaseComplete Phase = "complete"
	PhaseError    Phase = "error"
)

// Snapshot is an immutable view of indexing progress.
type Snapshot struct {
	Phase       Phase  `json:"phase"`
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	CurrentFile string `json:"currentFile,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Tracker holds the single active snapshot and fans updates out to
// subscribers. Subscriber channels are buffered and never block the indexer;
// a slow subscriber misses intermediate snapshots, not the terminal one.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
	subs map[int]chan Snapshot
	next int
}

// NewTracker returns a Tracker in the idle phase.
func NewTracker() *Tracker {
	return &Tracker{
		snap: Snapshot{Phase: PhaseIdle},
		subs: make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Set replaces the snapshot and notifies subscribers.
func (t *Tracker) Set(s Snapshot) {
	t.mu.Lock()
	t.snap = s
	for _, ch := range t.subs {
		select {
		case ch <- s:
		default:
			// Drop the stale buffered snapshot so the latest one lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
	t.mu.Unlock()
}

// Reset returns the tracker to idle. Called before each full-index run.
func (t *Tracker) Reset() {
	t.Set(Snapshot{Phase: PhaseIdle})
}

// Subscribe registers for snapshot updates. The returned cancel func must be
// called when the subscriber is done; after cancel the channel is closed.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	ch := make(chan Snapshot, 1)
	t.subs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}
