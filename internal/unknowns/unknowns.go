// Package unknowns buffers descriptors that matched no identity and folds
// near-duplicate captures of the same face into one pending entry.
package unknowns

import (
	"sync"
	"time"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// Pending is an unresolved face awaiting operator confirmation.
type Pending struct {
	Key        string
	Photo      string
	Descriptor facematch.FaceVector
	CapturedAt time.Time
}

// Table is a bounded, session-scoped set of pending unknown faces.
// When full, offering a new face evicts the oldest entry.
type Table struct {
	mu       sync.Mutex
	epsilon  float64
	capacity int
	entries  map[string]*Pending
	order    []string // keys, oldest first
	now      func() time.Time
}

// New creates a table that suppresses offers within epsilon of a pending entry.
// A capacity below one means unbounded.
func New(epsilon float64, capacity int) *Table {
	return &Table{
		epsilon:  epsilon,
		capacity: capacity,
		entries:  make(map[string]*Pending),
		now:      time.Now,
	}
}

// Offer stages descriptor as a new pending face. It returns nil and false when
// the descriptor is within epsilon of an entry already pending (including an
// identical one). The returned entry is a copy.
func (t *Table) Offer(descriptor facematch.FaceVector, photo string) (*Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := descriptor.Key()
	if _, ok := t.entries[key]; ok {
		return nil, false
	}
	for _, k := range t.order {
		if facematch.EuclideanDistance(descriptor, t.entries[k].Descriptor) < t.epsilon {
			return nil, false
		}
	}

	if t.capacity > 0 && len(t.order) >= t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.entries, oldest)
	}

	p := &Pending{
		Key:        key,
		Photo:      photo,
		Descriptor: descriptor.Clone(),
		CapturedAt: t.now(),
	}
	t.entries[key] = p
	t.order = append(t.order, key)
	return clonePending(p), true
}

// Resolve removes the entry for key. It reports whether the key was pending.
func (t *Table) Resolve(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the pending entry for key.
func (t *Table) Get(key string) (*Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	return clonePending(p), true
}

// List returns copies of all pending entries, oldest first.
func (t *Table) List() []Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Pending, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, *clonePending(t.entries[k]))
	}
	return out
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Clear discards every pending entry. Called when the capture session ends.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*Pending)
	t.order = nil
}

// Epsilon returns the dedup threshold.
func (t *Table) Epsilon() float64 { return t.epsilon }

func clonePending(p *Pending) *Pending {
	out := *p
	out.Descriptor = p.Descriptor.Clone()
	return &out
}
