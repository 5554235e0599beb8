// internal/stager/stager.go
//
// The stager holds attachment files between selection and upload. A file
// cannot be attributed a server image id until its owning section has been
// persisted, so selected files wait here as pending slots with a local
// preview, and are committed once the section save succeeds.

package stager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/drvillela/expediente/internal/expedient"
	"go.uber.org/zap"
)

// DefaultMaxBytes is the upload size ceiling.
const DefaultMaxBytes = 4 << 20

var (
	// ErrUnknownSlot is returned for slot names outside the record's set.
	ErrUnknownSlot = errors.New("stager: unknown slot")
	// ErrNotImage is returned when the selected file is not an image.
	ErrNotImage = errors.New("stager: file is not an image")
	// ErrTooLarge is returned when the selected file exceeds the ceiling.
	ErrTooLarge = errors.New("stager: file exceeds size limit")
	// ErrNothingPending is returned when committing a slot with no pending file.
	ErrNothingPending = errors.New("stager: nothing pending for slot")
	// ErrFileUnavailable is returned when a pending slot was restored from a
	// draft and only its preview survived; the raw file must be re-attached.
	ErrFileUnavailable = errors.New("stager: raw file unavailable, re-attach to upload")
)

// State describes a slot's lifecycle position.
type State string

const (
	StateEmpty     State = "empty"
	StatePending   State = "pendingLocal"
	StateCommitted State = "committed"
)

// Status is a read-only view of one slot.
type Status struct {
	Slot     expedient.Slot
	State    State
	FileName string
	Preview  string
	ImageID  string
}

// Uploader pushes one staged file to the persistence API and returns the
// server-assigned image id.
type Uploader func(ctx context.Context, recordID int, slot expedient.Slot, fileName string, data []byte) (string, error)

type slotState struct {
	state       State
	fileName    string
	data        []byte
	preview     string
	imageID     string
	clearStaged bool
}

// Stager tracks every attachment slot of the record.
type Stager struct {
	mu       sync.Mutex
	logger   *zap.Logger
	maxBytes int
	slots    map[expedient.Slot]*slotState
}

// Option customizes the stager.
type Option func(*Stager)

// WithMaxBytes overrides the upload size ceiling.
func WithMaxBytes(n int) Option {
	return func(s *Stager) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// New creates a stager with every known slot empty.
func New(logger *zap.Logger, opts ...Option) *Stager {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stager{
		logger:   logger,
		maxBytes: DefaultMaxBytes,
		slots:    make(map[expedient.Slot]*slotState),
	}
	for _, slot := range expedient.Slots() {
		s.slots[slot] = &slotState{state: StateEmpty}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select validates a chosen file and stages it as pendingLocal. Rejection
// leaves the slot untouched. The returned preview is a data URL suitable for
// embedding in the draft; the raw bytes stay in memory only.
func (s *Stager) Select(slot expedient.Slot, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return "", ErrUnknownSlot
	}
	if len(data) > s.maxBytes {
		return "", fmt.Errorf("%w (%d bytes, limit %d)", ErrTooLarge, len(data), s.maxBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w (detected %s)", ErrNotImage, mime)
	}
	preview := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
	st.state = StatePending
	st.fileName = fileName
	st.data = data
	st.preview = preview
	st.clearStaged = false
	s.logger.Debug("staged attachment",
		zap.String("slot", string(slot)),
		zap.String("file", fileName),
		zap.Int("bytes", len(data)),
	)
	return preview, nil
}

// RestorePreview marks a slot pendingLocal with a preview but no raw file.
// Used when accepting a draft after a process restart: the preview survived
// in the draft, the bytes did not.
func (s *Stager) RestorePreview(slot expedient.Slot, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return ErrUnknownSlot
	}
	if st.state == StateCommitted {
		return nil
	}
	st.state = StatePending
	st.preview = preview
	st.data = nil
	return nil
}

// Hydrate marks a slot committed with a server-assigned image id, as found
// on a freshly loaded record.
func (s *Stager) Hydrate(slot expedient.Slot, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return ErrUnknownSlot
	}
	st.state = StateCommitted
	st.imageID = imageID
	st.data = nil
	st.clearStaged = false
	return nil
}

// Status reports the current view of one slot.
func (s *Stager) Status(slot expedient.Slot) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return Status{}, ErrUnknownSlot
	}
	return Status{
		Slot:     slot,
		State:    st.state,
		FileName: st.fileName,
		Preview:  st.preview,
		ImageID:  st.imageID,
	}, nil
}

// Pending lists the slots of a section currently holding pendingLocal state.
func (s *Stager) Pending(section expedient.SectionKey) []expedient.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []expedient.Slot
	for _, slot := range expedient.SlotsFor(section) {
		if st := s.slots[slot]; st != nil && st.state == StatePending {
			out = append(out, slot)
		}
	}
	return out
}

// Previews returns every non-empty preview, for embedding in the draft.
func (s *Stager) Previews() map[expedient.Slot]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[expedient.Slot]string)
	for slot, st := range s.slots {
		if st.state == StatePending && st.preview != "" {
			out[slot] = st.preview
		}
	}
	return out
}

// Commit uploads one pending slot and transitions it to committed. The slot
// stays pendingLocal on upload failure and the caller may retry
// independently of the section's own (already successful) save.
func (s *Stager) Commit(ctx context.Context, slot expedient.Slot, recordID int, upload Uploader) (string, error) {
	s.mu.Lock()
	st, ok := s.slots[slot]
	if !ok {
		s.mu.Unlock()
		return "", ErrUnknownSlot
	}
	if st.state != StatePending {
		s.mu.Unlock()
		return "", ErrNothingPending
	}
	if len(st.data) == 0 {
		s.mu.Unlock()
		return "", ErrFileUnavailable
	}
	fileName := st.fileName
	data := st.data
	s.mu.Unlock()

	imageID, err := upload(ctx, recordID, slot, fileName, data)
	if err != nil {
		s.logger.Warn("attachment upload failed",
			zap.String("slot", string(slot)),
			zap.Error(err),
		)
		return "", fmt.Errorf("stager: upload %s: %w", slot, err)
	}

	s.mu.Lock()
	st.state = StateCommitted
	st.imageID = imageID
	st.data = nil
	s.mu.Unlock()
	s.logger.Info("attachment committed",
		zap.String("slot", string(slot)),
		zap.String("image_id", imageID),
	)
	return imageID, nil
}

// Clear discards a slot's pending file and preview. Clearing a committed
// slot stages a tombstone: the next section save sends an empty image id so
// the server-side association is removed.
func (s *Stager) Clear(slot expedient.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return ErrUnknownSlot
	}
	wasCommitted := st.state == StateCommitted
	st.state = StateEmpty
	st.fileName = ""
	st.data = nil
	st.preview = ""
	st.imageID = ""
	st.clearStaged = wasCommitted
	return nil
}

// FieldOverrides returns image-id field values the orchestrator must merge
// into a section's save payload: committed ids, plus empty values for
// tombstoned slots.
func (s *Stager) FieldOverrides(section expedient.SectionKey) expedient.SectionValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(expedient.SectionValues)
	for _, slot := range expedient.SlotsFor(section) {
		st := s.slots[slot]
		if st == nil {
			continue
		}
		owner, ok := slot.Owner()
		if !ok {
			continue
		}
		switch {
		case st.state == StateCommitted && st.imageID != "":
			setField(out, owner, st.imageID)
		case st.clearStaged:
			setField(out, owner, "")
		}
	}
	return out
}

// ConfirmSave drops tombstones for a section after its save succeeded.
func (s *Stager) ConfirmSave(section expedient.SectionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range expedient.SlotsFor(section) {
		if st := s.slots[slot]; st != nil {
			st.clearStaged = false
		}
	}
}

func setField(values expedient.SectionValues, owner expedient.SlotOwner, value string) {
	kinds, ok := values[owner.Kind]
	if !ok {
		kinds = make(expedient.Values)
		values[owner.Kind] = kinds
	}
	kinds[owner.Field] = value
}
