// internal/registry/registry.go
//
// The registry receives sub-form handles emitted by section editors,
// classifies them by their kind tag, keeps the latest value snapshot per
// sub-form, and forwards every value change to whoever is listening
// (in practice the draft engine).

package registry

import (
	"fmt"
	"sync"

	"github.com/drvillela/expediente/internal/expedient"
	"go.uber.org/zap"
)

// Handle is the contract a section editor's sub-form exposes to the registry.
// Watch must invoke its callback on every value change and return a cancel
// function; the registry owns cancellation across re-registrations.
type Handle interface {
	Kind() expedient.Kind
	Values() expedient.Values
	Apply(expedient.Values)
	Reset()
	Watch(func(expedient.Values)) (cancel func())
}

// ChangeFunc observes value changes flowing through the registry.
type ChangeFunc func(section expedient.SectionKey, kind expedient.Kind, values expedient.Values)

type entry struct {
	handle Handle
	cancel func()
}

// Registry stores registered sub-forms and their cached value snapshots.
// It is mutated only from the editor's event loop; the mutex guards the
// asynchronous change callbacks delivered by handles.
type Registry struct {
	mu        sync.Mutex
	logger    *zap.Logger
	entries   map[expedient.Kind]*entry
	snapshots map[expedient.Kind]expedient.Values
	onChange  ChangeFunc
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger,
		entries:   make(map[expedient.Kind]*entry),
		snapshots: make(map[expedient.Kind]expedient.Values),
	}
}

// OnChange sets the observer for value changes. Must be set before handles
// start emitting.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register accepts a sub-form emission. Unknown kinds are fatal to that
// emission only: the error is logged and the sibling sub-forms are
// unaffected. Re-registering a kind cancels the previous subscription before
// attaching the new one, so a handle slot never carries two subscriptions.
func (r *Registry) Register(h Handle) error {
	if h == nil {
		return fmt.Errorf("registry: nil handle")
	}
	kind := h.Kind()
	section, err := expedient.Classify(kind)
	if err != nil {
		r.logger.Warn("rejected sub-form with unknown kind", zap.String("kind", string(kind)))
		return fmt.Errorf("registry: %w", err)
	}

	r.mu.Lock()
	if prev, ok := r.entries[kind]; ok && prev.cancel != nil {
		prev.cancel()
	}
	// Restore the cached snapshot before wiring the change stream so the
	// restoration itself does not loop back into the draft engine.
	if cached, ok := r.snapshots[kind]; ok {
		h.Apply(cached.Clone())
	} else {
		r.snapshots[kind] = h.Values().Clone()
	}
	e := &entry{handle: h}
	r.entries[kind] = e
	r.mu.Unlock()

	cancel := h.Watch(func(values expedient.Values) {
		r.noteChange(section, kind, values)
	})
	r.mu.Lock()
	if current, ok := r.entries[kind]; ok && current == e {
		e.cancel = cancel
	} else if cancel != nil {
		// A re-registration raced this attach; drop the stale subscription.
		cancel()
	}
	r.mu.Unlock()

	r.logger.Debug("registered sub-form",
		zap.String("section", string(section)),
		zap.String("kind", string(kind)),
	)
	return nil
}

func (r *Registry) noteChange(section expedient.SectionKey, kind expedient.Kind, values expedient.Values) {
	r.mu.Lock()
	r.snapshots[kind] = values.Clone()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(section, kind, values.Clone())
	}
}

// SectionValues returns the current snapshot of every registered sub-form
// under a section, keyed by kind. Kinds that never registered are absent.
func (r *Registry) SectionValues(section expedient.SectionKey) expedient.SectionValues {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(expedient.SectionValues)
	for _, kind := range expedient.KindsFor(section) {
		if values, ok := r.snapshots[kind]; ok {
			out[kind] = values.Clone()
		}
	}
	return out
}

// AllValues returns a snapshot of every section's sub-form values.
func (r *Registry) AllValues() expedient.RecordValues {
	out := make(expedient.RecordValues)
	for _, section := range expedient.SectionOrder {
		values := r.SectionValues(section)
		if len(values) > 0 {
			out[section] = values
		}
	}
	return out
}

// Restore replaces cached snapshots with the given values and pushes them
// into any registered handles. Used for the server baseline on open and for
// accepted drafts. Restoration does not feed the change stream.
func (r *Registry) Restore(values expedient.RecordValues) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kinds := range values {
		for kind, snapshot := range kinds {
			if _, err := expedient.Classify(kind); err != nil {
				r.logger.Warn("skipping restore for unknown kind", zap.String("kind", string(kind)))
				continue
			}
			r.snapshots[kind] = snapshot.Clone()
			if e, ok := r.entries[kind]; ok {
				e.handle.Apply(snapshot.Clone())
			}
		}
	}
}

// ResetAll clears every cached snapshot and resets registered handles to
// their defaults. Used when a draft is rejected for a new record.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = make(map[expedient.Kind]expedient.Values)
	for kind, e := range r.entries {
		e.handle.Reset()
		r.snapshots[kind] = e.handle.Values().Clone()
	}
}
