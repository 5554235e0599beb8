// internal/saver/saver.go
//
// The save orchestrator drives the commit protocol for one section: one
// persistence call per sub-form, run concurrently, aggregated into a single
// outcome. Completion is granted only when every constituent call succeeds,
// and only then are the section's pending attachments committed.

package saver

import (
	"context"
	"fmt"
	"sync"

	"github.com/drvillela/expediente/internal/expedient"
	"github.com/drvillela/expediente/internal/progress"
	"github.com/drvillela/expediente/internal/registry"
	"github.com/drvillela/expediente/internal/stager"
	"go.uber.org/zap"
)

// PersistenceAPI is the black-box server contract the orchestrator consumes.
type PersistenceAPI interface {
	CreateRecord(ctx context.Context, secciones expedient.RecordValues) (int, error)
	PatchSection(ctx context.Context, recordID int, section expedient.SectionKey, kind expedient.Kind, values expedient.Values) error
	UploadImage(ctx context.Context, recordID int, slot expedient.Slot, fileName string, data []byte) (string, error)
	GetRecord(ctx context.Context, recordID int) (expedient.Record, error)
}

// SubFormOutcome reports one constituent persistence call.
type SubFormOutcome struct {
	Kind expedient.Kind
	Err  error
}

// AttachmentOutcome reports one attachment commit attempt. Attachment
// failures are isolated from the section's own save outcome.
type AttachmentOutcome struct {
	Slot    expedient.Slot
	ImageID string
	Err     error
}

// Result aggregates a section save cycle.
type Result struct {
	Section     expedient.SectionKey
	RecordID    int
	Created     bool
	SubForms    []SubFormOutcome
	Attachments []AttachmentOutcome
}

// OK reports whether every sub-form call succeeded. Attachment outcomes do
// not participate: image failures are reported distinctly and never roll
// back text data.
func (r Result) OK() bool {
	if len(r.SubForms) == 0 {
		return false
	}
	for _, outcome := range r.SubForms {
		if outcome.Err != nil {
			return false
		}
	}
	return true
}

// FailedKinds names the sub-forms whose persistence calls failed.
func (r Result) FailedKinds() []expedient.Kind {
	var out []expedient.Kind
	for _, outcome := range r.SubForms {
		if outcome.Err != nil {
			out = append(out, outcome.Kind)
		}
	}
	return out
}

// Saver orchestrates section saves against the persistence API.
type Saver struct {
	api      PersistenceAPI
	registry *registry.Registry
	stager   *stager.Stager
	progress *progress.Tracker
	logger   *zap.Logger
}

// New wires the orchestrator to its collaborators.
func New(api PersistenceAPI, reg *registry.Registry, stg *stager.Stager, tracker *progress.Tracker, logger *zap.Logger) (*Saver, error) {
	if api == nil {
		return nil, fmt.Errorf("saver: persistence API is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("saver: registry is required")
	}
	if stg == nil {
		return nil, fmt.Errorf("saver: stager is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("saver: progress tracker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{api: api, registry: reg, stager: stg, progress: tracker, logger: logger}, nil
}

// Save runs one save cycle for a section. recordID zero means the record has
// no server identity yet; the first successful save creates it. Resubmission
// overwrites server state field by field, so retrying a partially failed
// cycle is safe.
func (s *Saver) Save(ctx context.Context, recordID int, section expedient.SectionKey) (Result, error) {
	if !section.Valid() {
		return Result{}, fmt.Errorf("saver: unknown section %q", section)
	}
	payload := s.registry.SectionValues(section)
	mergeOverrides(payload, s.stager.FieldOverrides(section))
	if len(payload) == 0 {
		return Result{}, fmt.Errorf("saver: no registered sub-forms for section %q", section)
	}

	result := Result{Section: section, RecordID: recordID}
	if recordID == 0 {
		id, err := s.api.CreateRecord(ctx, expedient.RecordValues{section: payload})
		for _, kind := range orderedKinds(section, payload) {
			result.SubForms = append(result.SubForms, SubFormOutcome{Kind: kind, Err: err})
		}
		if err != nil {
			s.logger.Warn("record creation failed", zap.String("section", string(section)), zap.Error(err))
			return result, nil
		}
		result.RecordID = id
		result.Created = true
		s.logger.Info("record created", zap.Int("record_id", id), zap.String("section", string(section)))
	} else {
		result.SubForms = s.patchAll(ctx, recordID, section, payload)
	}

	if !result.OK() {
		// CompletionState stays unset and navigation is not advanced; the
		// user may retry the whole section.
		return result, nil
	}

	s.progress.MarkComplete(section)
	result.Attachments = s.commitAttachments(ctx, result.RecordID, section)
	s.stager.ConfirmSave(section)
	return result, nil
}

// patchAll issues one PatchSection call per sub-form, concurrently, and
// waits for every call to settle before reporting. A half-saved section can
// therefore never observe completion.
func (s *Saver) patchAll(ctx context.Context, recordID int, section expedient.SectionKey, payload expedient.SectionValues) []SubFormOutcome {
	kinds := orderedKinds(section, payload)
	outcomes := make([]SubFormOutcome, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind expedient.Kind) {
			defer wg.Done()
			err := s.api.PatchSection(ctx, recordID, section, kind, payload[kind])
			outcomes[i] = SubFormOutcome{Kind: kind, Err: err}
		}(i, kind)
	}
	wg.Wait()
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			s.logger.Warn("sub-form save failed",
				zap.String("section", string(section)),
				zap.String("kind", string(outcome.Kind)),
				zap.Error(outcome.Err),
			)
		}
	}
	return outcomes
}

// commitAttachments uploads every pending slot of the section and persists
// the returned image ids back onto the owning sub-forms, so an id survives
// even if the user never resubmits the section.
func (s *Saver) commitAttachments(ctx context.Context, recordID int, section expedient.SectionKey) []AttachmentOutcome {
	pending := s.stager.Pending(section)
	if len(pending) == 0 {
		return nil
	}
	outcomes := make([]AttachmentOutcome, 0, len(pending))
	for _, slot := range pending {
		imageID, err := s.stager.Commit(ctx, slot, recordID, s.api.UploadImage)
		outcome := AttachmentOutcome{Slot: slot, ImageID: imageID, Err: err}
		if err == nil {
			outcome.Err = s.writeBackImageID(ctx, recordID, slot, imageID)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (s *Saver) writeBackImageID(ctx context.Context, recordID int, slot expedient.Slot, imageID string) error {
	owner, ok := slot.Owner()
	if !ok {
		return fmt.Errorf("saver: slot %q has no owner", slot)
	}
	values := s.registry.SectionValues(owner.Section)[owner.Kind]
	if values == nil {
		values = make(expedient.Values)
	}
	values[owner.Field] = imageID
	if err := s.api.PatchSection(ctx, recordID, owner.Section, owner.Kind, values); err != nil {
		s.logger.Warn("image id write-back failed",
			zap.String("slot", string(slot)),
			zap.String("image_id", imageID),
			zap.Error(err),
		)
		return fmt.Errorf("saver: persist image id for %s: %w", slot, err)
	}
	return nil
}

func orderedKinds(section expedient.SectionKey, payload expedient.SectionValues) []expedient.Kind {
	var out []expedient.Kind
	for _, kind := range expedient.KindsFor(section) {
		if _, ok := payload[kind]; ok {
			out = append(out, kind)
		}
	}
	return out
}

func mergeOverrides(payload, overrides expedient.SectionValues) {
	for kind, fields := range overrides {
		target, ok := payload[kind]
		if !ok {
			target = make(expedient.Values)
			payload[kind] = target
		}
		for field, value := range fields {
			target[field] = value
		}
	}
}
