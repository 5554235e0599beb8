package draft

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/drvillela/expediente/internal/expedient"
	"go.uber.org/zap"
)

// DefaultInterval is the quiet period after the last edit before the draft
// is written to the store.
const DefaultInterval = time.Second

// Engine turns the stream of sub-form value changes into debounced draft
// writes. Rapid edits within the quiet interval collapse into a single write
// carrying the final values, and a write is skipped entirely when the
// serialized snapshot is unchanged from the last one stored.
type Engine struct {
	store    Store
	logger   *zap.Logger
	interval time.Duration
	clock    func() time.Time

	mu          sync.Mutex
	key         Key
	pending     Draft
	dirty       bool
	gen         uint64
	timer       *time.Timer
	lastWritten []byte
	lastSaved   time.Time

	// writeMu serializes store writes so a new debounce cycle never
	// overlaps an in-flight write for the same key.
	writeMu sync.Mutex
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithInterval overrides the debounce quiet interval.
func WithInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine creates an engine bound to the "new record" key.
func NewEngine(store Store, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		logger:   logger,
		interval: DefaultInterval,
		clock:    time.Now,
		pending:  Draft{Version: FormatVersion},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bind sets the draft key the engine writes under. Pending state is kept.
func (e *Engine) Bind(key Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.key = key
	e.lastWritten = nil
}

// Rebind moves the engine to a new key after the record gains a server id.
// The draft stored under the old key is removed, and any pending edits are
// flushed promptly under the new key.
func (e *Engine) Rebind(key Key) {
	e.mu.Lock()
	old := e.key
	if old == key {
		e.mu.Unlock()
		return
	}
	e.key = key
	e.lastWritten = nil
	hasPending := !e.pending.Empty()
	if hasPending {
		e.dirty = true
	}
	e.mu.Unlock()

	if err := e.store.Delete(old); err != nil {
		e.logger.Warn("failed to delete superseded draft", zap.String("key", old.String()), zap.Error(err))
	}
	if hasPending {
		e.flush()
	}
}

// Key returns the key the engine currently writes under.
func (e *Engine) Key() Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key
}

// Note merges a sub-form's latest values into the pending draft and
// reschedules the debounce timer.
func (e *Engine) Note(section expedient.SectionKey, kind expedient.Kind, values expedient.Values) {
	e.mu.Lock()
	if e.pending.Values == nil {
		e.pending.Values = make(expedient.RecordValues)
	}
	kinds, ok := e.pending.Values[section]
	if !ok {
		kinds = make(expedient.SectionValues)
		e.pending.Values[section] = kinds
	}
	kinds[kind] = values.Clone()
	e.dirty = true
	e.gen++
	e.schedule()
	e.mu.Unlock()
}

// SetPreview records an attachment preview in the pending draft.
func (e *Engine) SetPreview(slot expedient.Slot, preview string) {
	e.mu.Lock()
	if e.pending.Previews == nil {
		e.pending.Previews = make(map[expedient.Slot]string)
	}
	e.pending.Previews[slot] = preview
	e.dirty = true
	e.gen++
	e.schedule()
	e.mu.Unlock()
}

// RemovePreview drops an attachment preview from the pending draft.
func (e *Engine) RemovePreview(slot expedient.Slot) {
	e.mu.Lock()
	if _, ok := e.pending.Previews[slot]; ok {
		delete(e.pending.Previews, slot)
		e.dirty = true
		e.gen++
		e.schedule()
	}
	e.mu.Unlock()
}

// schedule arms the debounce timer with cancel-and-reschedule semantics.
// Callers must hold e.mu.
func (e *Engine) schedule() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.interval, e.flush)
}

// Adopt replaces the pending draft with an accepted stored draft. The
// adopted snapshot counts as already written, so acceptance alone does not
// trigger a storage write.
func (e *Engine) Adopt(d Draft) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = d.Clone()
	e.pending.Version = FormatVersion
	e.dirty = false
	e.gen++
	e.lastWritten = fingerprint(e.pending)
}

// LastSaved returns the time of the last successful autosave write in this
// process, or zero when nothing has been written yet.
func (e *Engine) LastSaved() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSaved
}

// Stored returns the draft persisted under a key, if any.
func (e *Engine) Stored(key Key) (Draft, error) {
	return e.store.Get(key)
}

// Flush writes the pending draft immediately, bypassing the debounce timer.
func (e *Engine) Flush() {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
	e.flush()
}

func (e *Engine) flush() {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return
	}
	key := e.key
	gen := e.gen
	snapshot := e.pending.Clone()
	snapshot.SavedAt = e.clock()
	print := fingerprint(snapshot)
	if bytes.Equal(print, e.lastWritten) {
		e.dirty = false
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := e.store.Put(key, snapshot); err != nil {
		// Non-fatal: editing continues, the next debounce cycle retries.
		e.logger.Warn("autosave write failed", zap.String("key", key.String()), zap.Error(err))
		return
	}

	e.mu.Lock()
	// An edit that landed while the write was in flight replaced e.pending;
	// it must stay dirty so its own debounce cycle persists it.
	if e.key == key && e.gen == gen {
		e.lastWritten = print
		e.dirty = false
		e.lastSaved = snapshot.SavedAt
	}
	e.mu.Unlock()
	e.logger.Debug("autosaved draft", zap.String("key", key.String()))
}

// Discard deletes the stored draft for the current key and clears pending
// state. Used on explicit rejection, explicit discard, and full completion.
func (e *Engine) Discard() error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	key := e.key
	e.pending = Draft{Version: FormatVersion}
	e.dirty = false
	e.gen++
	e.lastWritten = nil
	e.mu.Unlock()

	// Taking writeMu keeps the delete from interleaving with an in-flight
	// write, which would re-create the file after it was removed.
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.store.Delete(key)
}

// Close stops the debounce timer and flushes any pending edits.
func (e *Engine) Close() {
	e.Flush()
}

// fingerprint serializes the comparable portion of a draft. SavedAt is
// excluded so a timestamp alone never defeats equality suppression.
func fingerprint(d Draft) []byte {
	body := struct {
		Values   expedient.RecordValues    `json:"values"`
		Previews map[expedient.Slot]string `json:"previews,omitempty"`
	}{Values: d.Values, Previews: d.Previews}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return encoded
}
