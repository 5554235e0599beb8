package stager_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/drvillela/expediente/internal/expedient"
	"github.com/drvillela/expediente/internal/stager"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func okUploader(id string) stager.Uploader {
	return func(context.Context, int, expedient.Slot, string, []byte) (string, error) {
		return id, nil
	}
}

func TestSelectStagesValidImage(t *testing.T) {
	s := stager.New(zap.NewNop())
	preview, err := s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(preview, "data:image/png;base64,"))

	status, err := s.Status(expedient.SlotCampimetria)
	require.NoError(t, err)
	require.Equal(t, stager.StatePending, status.State)
	require.Equal(t, "campo.png", status.FileName)
	require.Equal(t, preview, status.Preview)
}

func TestSelectRejectsNonImage(t *testing.T) {
	s := stager.New(zap.NewNop())
	_, err := s.Select(expedient.SlotCampimetria, "notas.txt", []byte("hola mundo"))
	require.ErrorIs(t, err, stager.ErrNotImage)

	// Rejection leaves the slot untouched.
	status, statusErr := s.Status(expedient.SlotCampimetria)
	require.NoError(t, statusErr)
	require.Equal(t, stager.StateEmpty, status.State)
}

func TestSelectRejectsOversizedFile(t *testing.T) {
	s := stager.New(zap.NewNop(), stager.WithMaxBytes(8))
	_, err := s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.ErrorIs(t, err, stager.ErrTooLarge)
}

func TestSelectRejectsUnknownSlot(t *testing.T) {
	s := stager.New(zap.NewNop())
	_, err := s.Select(expedient.Slot("retinografia"), "x.png", pngBytes)
	require.ErrorIs(t, err, stager.ErrUnknownSlot)
}

func TestCommitTransitionsToCommitted(t *testing.T) {
	s := stager.New(zap.NewNop())
	_, err := s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.NoError(t, err)

	imageID, err := s.Commit(context.Background(), expedient.SlotCampimetria, 42, okUploader("img-1"))
	require.NoError(t, err)
	require.Equal(t, "img-1", imageID)

	status, err := s.Status(expedient.SlotCampimetria)
	require.NoError(t, err)
	require.Equal(t, stager.StateCommitted, status.State)
	require.Equal(t, "img-1", status.ImageID)
}

func TestCommitFailureKeepsSlotPending(t *testing.T) {
	s := stager.New(zap.NewNop())
	_, err := s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.NoError(t, err)

	failing := func(context.Context, int, expedient.Slot, string, []byte) (string, error) {
		return "", errors.New("gateway timeout")
	}
	_, err = s.Commit(context.Background(), expedient.SlotCampimetria, 42, failing)
	require.Error(t, err)

	status, statusErr := s.Status(expedient.SlotCampimetria)
	require.NoError(t, statusErr)
	require.Equal(t, stager.StatePending, status.State)

	// Independent retry succeeds.
	_, err = s.Commit(context.Background(), expedient.SlotCampimetria, 42, okUploader("img-2"))
	require.NoError(t, err)
}

func TestRestoredPreviewCannotUploadWithoutFile(t *testing.T) {
	s := stager.New(zap.NewNop())
	require.NoError(t, s.RestorePreview(expedient.SlotCampimetria, "data:image/png;base64,AAAA"))

	status, err := s.Status(expedient.SlotCampimetria)
	require.NoError(t, err)
	require.Equal(t, stager.StatePending, status.State)

	_, err = s.Commit(context.Background(), expedient.SlotCampimetria, 42, okUploader("img-1"))
	require.ErrorIs(t, err, stager.ErrFileUnavailable)

	// Re-attaching makes the slot uploadable again.
	_, err = s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.NoError(t, err)
	_, err = s.Commit(context.Background(), expedient.SlotCampimetria, 42, okUploader("img-1"))
	require.NoError(t, err)
}

func TestPendingListsOnlyPendingSlotsOfSection(t *testing.T) {
	s := stager.New(zap.NewNop())
	_, err := s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.NoError(t, err)
	require.Equal(t, []expedient.Slot{expedient.SlotCampimetria}, s.Pending(expedient.SectionDeteccionAlteraciones))
	require.Empty(t, s.Pending(expedient.SectionReceta))

	_, err = s.Commit(context.Background(), expedient.SlotCampimetria, 42, okUploader("img-1"))
	require.NoError(t, err)
	require.Empty(t, s.Pending(expedient.SectionDeteccionAlteraciones))
}

func TestClearCommittedSlotStagesTombstone(t *testing.T) {
	s := stager.New(zap.NewNop())
	require.NoError(t, s.Hydrate(expedient.SlotCampimetria, "img-9"))
	require.NoError(t, s.Clear(expedient.SlotCampimetria))

	overrides := s.FieldOverrides(expedient.SectionDeteccionAlteraciones)
	require.Equal(t, "", overrides[expedient.KindCampimetria]["imagenId"])

	s.ConfirmSave(expedient.SectionDeteccionAlteraciones)
	require.Empty(t, s.FieldOverrides(expedient.SectionDeteccionAlteraciones))
}

func TestFieldOverridesCarryCommittedImageIDs(t *testing.T) {
	s := stager.New(zap.NewNop())
	require.NoError(t, s.Hydrate(expedient.SlotOftalmoscopiaOD, "img-od"))

	overrides := s.FieldOverrides(expedient.SectionDeteccionAlteraciones)
	require.Equal(t, "img-od", overrides[expedient.KindOftalmoscopia]["imagenOdId"])
}

func TestPreviewsReturnsPendingPreviews(t *testing.T) {
	s := stager.New(zap.NewNop())
	preview, err := s.Select(expedient.SlotCampimetria, "campo.png", pngBytes)
	require.NoError(t, err)
	require.Equal(t, map[expedient.Slot]string{expedient.SlotCampimetria: preview}, s.Previews())
}
