// internal/progress/progress.go
//
// Completion is derived from save outcomes only: a section is complete once
// every one of its sub-forms was persisted successfully in the same save
// cycle, never from client-side validity.

package progress

import (
	"fmt"
	"sync"

	"github.com/drvillela/expediente/internal/expedient"
)

// Tracker holds per-section completion flags and the active section pointer.
// Sections are independently revisitable: Advance moves the pointer without
// gating on completion, and JumpTo is always permitted.
type Tracker struct {
	mu       sync.Mutex
	order    []expedient.SectionKey
	complete map[expedient.SectionKey]bool
	active   int
}

// New creates a tracker over the record's section order.
func New() *Tracker {
	order := make([]expedient.SectionKey, len(expedient.SectionOrder))
	copy(order, expedient.SectionOrder)
	return &Tracker{
		order:    order,
		complete: make(map[expedient.SectionKey]bool),
	}
}

// Active returns the section the editor currently points at.
func (t *Tracker) Active() expedient.SectionKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order[t.active]
}

// Advance moves the pointer to the next section in order, regardless of the
// current section's completion. At the end of the list the pointer stays.
func (t *Tracker) Advance() expedient.SectionKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active < len(t.order)-1 {
		t.active++
	}
	return t.order[t.active]
}

// JumpTo points the tracker at an arbitrary section.
func (t *Tracker) JumpTo(section expedient.SectionKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, key := range t.order {
		if key == section {
			t.active = i
			return nil
		}
	}
	return fmt.Errorf("progress: unknown section %q", section)
}

// MarkComplete records a successful section save.
func (t *Tracker) MarkComplete(section expedient.SectionKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.complete[section] = true
}

// SetBaseline seeds completion flags from a freshly loaded server record.
func (t *Tracker) SetBaseline(completed []expedient.SectionKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.complete = make(map[expedient.SectionKey]bool)
	for _, section := range completed {
		t.complete[section] = true
	}
}

// Complete reports whether a section has been saved successfully.
func (t *Tracker) Complete(section expedient.SectionKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.complete[section]
}

// AllComplete reports whether every section of the record is complete. This
// is the terminal condition that clears the local draft.
func (t *Tracker) AllComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, section := range t.order {
		if !t.complete[section] {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the completion map.
func (t *Tracker) Snapshot() map[expedient.SectionKey]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[expedient.SectionKey]bool, len(t.complete))
	for section, done := range t.complete {
		out[section] = done
	}
	return out
}
