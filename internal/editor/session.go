// internal/editor/session.go
//
// A Session ties the engine together for one record: it runs the open
// protocol (server baseline first, then the local draft offer), wires the
// registry's change stream into the draft engine, drives section saves, and
// clears the draft once the whole record is complete.

package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drvillela/expediente/internal/draft"
	"github.com/drvillela/expediente/internal/expedient"
	"github.com/drvillela/expediente/internal/progress"
	"github.com/drvillela/expediente/internal/registry"
	"github.com/drvillela/expediente/internal/saver"
	"github.com/drvillela/expediente/internal/stager"
	"go.uber.org/zap"
)

// Offer surfaces a stored draft found during Open. The caller must resolve
// it with AcceptDraft or RejectDraft before sub-form restoration proceeds
// from it; until then the registry holds defaults (new record) or the server
// baseline (existing record).
type Offer struct {
	Key   draft.Key
	Draft draft.Draft
}

// Session coordinates one record's editing lifecycle.
type Session struct {
	api      saver.PersistenceAPI
	registry *registry.Registry
	engine   *draft.Engine
	stager   *stager.Stager
	progress *progress.Tracker
	saver    *saver.Saver
	logger   *zap.Logger

	mu         sync.Mutex
	recordID   int
	onFinished func()
}

// Option customizes the session.
type Option func(*Session)

// WithFinishedFunc registers a callback fired once every section completes.
func WithFinishedFunc(fn func()) Option {
	return func(s *Session) {
		s.onFinished = fn
	}
}

// NewSession wires the session and connects the registry change stream to
// the draft engine.
func NewSession(
	api saver.PersistenceAPI,
	reg *registry.Registry,
	engine *draft.Engine,
	stg *stager.Stager,
	tracker *progress.Tracker,
	logger *zap.Logger,
	opts ...Option,
) (*Session, error) {
	if engine == nil {
		return nil, fmt.Errorf("editor: draft engine is required")
	}
	sv, err := saver.New(api, reg, stg, tracker, logger)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		api:      api,
		registry: reg,
		engine:   engine,
		stager:   stg,
		progress: tracker,
		saver:    sv,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	reg.OnChange(func(section expedient.SectionKey, kind expedient.Kind, values expedient.Values) {
		engine.Note(section, kind, values)
	})
	return s, nil
}

// RecordID returns the record's server id, or zero before creation.
func (s *Session) RecordID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID
}

// Open prepares the session for a record. For an existing id the
// authoritative server record is loaded first and becomes the registry
// baseline; that baseline is never silently overridden. Only then is local
// storage checked for a draft, which is returned as an offer for the user
// to accept or reject. For a new record a stored "draft:new" is offered
// before any restoration happens.
func (s *Session) Open(ctx context.Context, recordID int) (*Offer, error) {
	s.mu.Lock()
	s.recordID = recordID
	s.mu.Unlock()

	key := draft.NewKey()
	if recordID > 0 {
		key = draft.ByID(recordID)
		record, err := s.api.GetRecord(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("editor: load record %d: %w", recordID, err)
		}
		s.registry.Restore(record.Secciones)
		s.progress.SetBaseline(record.Completas)
		s.hydrateSlots(record)
	}
	s.engine.Bind(key)

	stored, err := s.engine.Stored(key)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return nil, nil
		}
		// A corrupt draft must not block the editor; log and move on.
		s.logger.Warn("stored draft unreadable", zap.String("key", key.String()), zap.Error(err))
		return nil, nil
	}
	if stored.Empty() {
		return nil, nil
	}
	s.logger.Info("stored draft found",
		zap.String("key", key.String()),
		zap.Time("saved_at", stored.SavedAt),
	)
	return &Offer{Key: key, Draft: stored}, nil
}

// hydrateSlots marks slots committed for image ids present on the loaded
// record.
func (s *Session) hydrateSlots(record expedient.Record) {
	for _, slot := range expedient.Slots() {
		owner, ok := slot.Owner()
		if !ok {
			continue
		}
		section, found := record.Secciones[owner.Section]
		if !found {
			continue
		}
		values, found := section[owner.Kind]
		if !found {
			continue
		}
		if imageID := values[owner.Field]; imageID != "" {
			if err := s.stager.Hydrate(slot, imageID); err != nil {
				s.logger.Warn("slot hydration failed", zap.String("slot", string(slot)), zap.Error(err))
			}
		}
	}
}

// AcceptDraft replays an offered draft: its values overwrite the registry
// (and for an existing record, the just-loaded baseline), and its previews
// re-stage the pending attachment slots. The adopted snapshot becomes the
// autosave baseline so acceptance does not itself trigger a write.
func (s *Session) AcceptDraft(offer *Offer) {
	if offer == nil {
		return
	}
	s.registry.Restore(offer.Draft.Values)
	for slot, preview := range offer.Draft.Previews {
		if err := s.stager.RestorePreview(slot, preview); err != nil {
			s.logger.Warn("preview restore failed", zap.String("slot", string(slot)), zap.Error(err))
		}
	}
	s.engine.Adopt(offer.Draft)
	s.logger.Info("draft accepted", zap.String("key", offer.Key.String()))
}

// RejectDraft deletes the offered draft. For a new record the registry
// resets to defaults; for an existing record the server baseline stays.
func (s *Session) RejectDraft(offer *Offer) error {
	if offer == nil {
		return nil
	}
	if offer.Key.IsNew() {
		s.registry.ResetAll()
	}
	if err := s.engine.Discard(); err != nil {
		return fmt.Errorf("editor: discard draft: %w", err)
	}
	s.logger.Info("draft rejected", zap.String("key", offer.Key.String()))
	return nil
}

// LastAutosave returns the time of the last successful draft write, or zero
// when nothing has been autosaved yet.
func (s *Session) LastAutosave() time.Time {
	return s.engine.LastSaved()
}

// Discard drops the stored draft explicitly without touching the registry.
func (s *Session) Discard() error {
	return s.engine.Discard()
}

// SelectAttachment stages a file for a slot and records its preview in the
// draft.
func (s *Session) SelectAttachment(slot expedient.Slot, fileName string, data []byte) (string, error) {
	preview, err := s.stager.Select(slot, fileName, data)
	if err != nil {
		return "", err
	}
	s.engine.SetPreview(slot, preview)
	return preview, nil
}

// ClearAttachment discards a slot's staged file and its draft preview.
func (s *Session) ClearAttachment(slot expedient.Slot) error {
	if err := s.stager.Clear(slot); err != nil {
		return err
	}
	s.engine.RemovePreview(slot)
	return nil
}

// SaveSection runs the save protocol for one section. On the first
// successful save of a new record the session adopts the server id and
// rebinds the draft key. Once every section is complete the stored draft is
// cleared and the finished callback fires.
func (s *Session) SaveSection(ctx context.Context, section expedient.SectionKey) (saver.Result, error) {
	s.mu.Lock()
	recordID := s.recordID
	s.mu.Unlock()

	result, err := s.saver.Save(ctx, recordID, section)
	if err != nil {
		return result, err
	}
	if result.Created {
		s.mu.Lock()
		s.recordID = result.RecordID
		s.mu.Unlock()
		s.engine.Rebind(draft.ByID(result.RecordID))
	}
	if result.OK() {
		s.progressAfterSave()
	}
	return result, nil
}

func (s *Session) progressAfterSave() {
	if !s.progress.AllComplete() {
		return
	}
	// The server is authoritative for the whole record now; no local-only
	// state may outlive it.
	if err := s.engine.Discard(); err != nil {
		s.logger.Warn("draft clear on completion failed", zap.Error(err))
	}
	s.logger.Info("record finished", zap.Int("record_id", s.RecordID()))
	if s.onFinished != nil {
		s.onFinished()
	}
}

// Advance moves the active section pointer forward.
func (s *Session) Advance() expedient.SectionKey {
	return s.progress.Advance()
}

// JumpTo points the editor at an arbitrary section.
func (s *Session) JumpTo(section expedient.SectionKey) error {
	return s.progress.JumpTo(section)
}

// Close flushes and stops the draft engine.
func (s *Session) Close() {
	s.engine.Close()
}
