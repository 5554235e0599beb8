package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/drvillela/expediente/internal/draft"
	"github.com/drvillela/expediente/internal/editor"
	"github.com/drvillela/expediente/internal/expedient"
	"github.com/drvillela/expediente/internal/progress"
	"github.com/drvillela/expediente/internal/registry"
	"github.com/drvillela/expediente/internal/saver"
	"github.com/drvillela/expediente/internal/stager"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopAPI struct{}

func (noopAPI) CreateRecord(context.Context, expedient.RecordValues) (int, error) {
	return 1, nil
}

func (noopAPI) PatchSection(context.Context, int, expedient.SectionKey, expedient.Kind, expedient.Values) error {
	return nil
}

func (noopAPI) UploadImage(context.Context, int, expedient.Slot, string, []byte) (string, error) {
	return "img-1", nil
}

func (noopAPI) GetRecord(context.Context, int) (expedient.Record, error) {
	return expedient.Record{}, errors.New("not implemented")
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	reg := registry.New(zap.NewNop())
	engine := draft.NewEngine(draft.NewFileStore(t.TempDir()), zap.NewNop())
	tracker := progress.New()
	session, err := editor.NewSession(noopAPI{}, reg, engine, stager.New(zap.NewNop()), tracker, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return NewApp(session, reg, tracker, nil, zap.NewNop())
}

func TestStaleSaveResultDoesNotOverwriteStatus(t *testing.T) {
	app := newTestApp(t)
	app.current = expedient.SectionReceta
	app.statusMsg = "Editando receta"

	msg := saveResultMsg{
		section: expedient.SectionDatosGenerales,
		err:     errors.New("503 service unavailable"),
	}

	// The user already moved on; the late outcome must not surface.
	for _, state := range []appState{stateMenu, stateForm} {
		app.state = state
		model, _ := app.Update(msg)
		require.Equal(t, "Editando receta", model.(*App).statusMsg)
	}
}

func TestSaveResultForCurrentSectionUpdatesStatus(t *testing.T) {
	app := newTestApp(t)
	app.state = stateForm
	app.current = expedient.SectionDatosGenerales

	result := saver.Result{
		Section:  expedient.SectionDatosGenerales,
		SubForms: []saver.SubFormOutcome{{Kind: expedient.KindDatosGenerales}},
	}
	model, _ := app.Update(saveResultMsg{section: expedient.SectionDatosGenerales, result: result})
	require.Contains(t, model.(*App).statusMsg, "guardada")
}

func TestFailedSaveNamesTheFailingSubForms(t *testing.T) {
	app := newTestApp(t)
	app.state = stateForm
	app.current = expedient.SectionDeteccionAlteraciones

	result := saver.Result{
		Section: expedient.SectionDeteccionAlteraciones,
		SubForms: []saver.SubFormOutcome{
			{Kind: expedient.KindOftalmoscopia},
			{Kind: expedient.KindTonometria, Err: errors.New("503 service unavailable")},
		},
	}
	model, _ := app.Update(saveResultMsg{section: expedient.SectionDeteccionAlteraciones, result: result})
	require.Contains(t, model.(*App).statusMsg, "tonometria")
}
