package draft_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drvillela/expediente/internal/draft"
	"github.com/drvillela/expediente/internal/expedient"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := draft.NewFileStore(t.TempDir())

	_, err := store.Get(draft.ByID(7))
	require.ErrorIs(t, err, draft.ErrNotFound)

	d := draft.Draft{
		Version: draft.FormatVersion,
		Values: expedient.RecordValues{
			expedient.SectionReceta: {
				expedient.KindReceta: {"esferaOD": "-1.25"},
			},
		},
		Previews: map[expedient.Slot]string{expedient.SlotCampimetria: "data:image/png;base64,AAAA"},
		SavedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(draft.ByID(7), d))

	loaded, err := store.Get(draft.ByID(7))
	require.NoError(t, err)
	require.Equal(t, d.Values, loaded.Values)
	require.Equal(t, d.Previews, loaded.Previews)
	require.True(t, d.SavedAt.Equal(loaded.SavedAt))

	require.NoError(t, store.Delete(draft.ByID(7)))
	_, err = store.Get(draft.ByID(7))
	require.ErrorIs(t, err, draft.ErrNotFound)
}

func TestFileStoreKeysDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	store := draft.NewFileStore(dir)

	require.NoError(t, store.Put(draft.NewKey(), draft.Draft{Version: draft.FormatVersion}))
	require.NoError(t, store.Put(draft.ByID(1), draft.Draft{Version: draft.FormatVersion}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	require.ElementsMatch(t, []string{"draft-new.json", "draft-1.json"}, names)
}

func TestFileStoreDeleteMissingIsNoError(t *testing.T) {
	store := draft.NewFileStore(t.TempDir())
	require.NoError(t, store.Delete(draft.ByID(99)))
}

func TestFileStoreRejectsCorruptDraft(t *testing.T) {
	dir := t.TempDir()
	store := draft.NewFileStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft-new.json"), []byte("{not json"), 0o644))
	_, err := store.Get(draft.NewKey())
	require.Error(t, err)
	require.NotErrorIs(t, err, draft.ErrNotFound)
}
