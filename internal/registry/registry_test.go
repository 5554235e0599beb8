package registry_test

import (
	"testing"

	"github.com/drvillela/expediente/internal/expedient"
	"github.com/drvillela/expediente/internal/registry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeHandle is a minimal sub-form editor for registry tests.
type fakeHandle struct {
	kind     expedient.Kind
	values   expedient.Values
	watchers []func(expedient.Values)
	cancels  int
}

func newFakeHandle(kind expedient.Kind) *fakeHandle {
	return &fakeHandle{kind: kind, values: expedient.Defaults(kind)}
}

func (f *fakeHandle) Kind() expedient.Kind      { return f.kind }
func (f *fakeHandle) Values() expedient.Values  { return f.values.Clone() }
func (f *fakeHandle) Apply(v expedient.Values)  { f.values = v.Clone() }
func (f *fakeHandle) Reset()                    { f.values = expedient.Defaults(f.kind) }
func (f *fakeHandle) Watch(fn func(expedient.Values)) func() {
	f.watchers = append(f.watchers, fn)
	return func() { f.cancels++ }
}

func (f *fakeHandle) edit(key, value string) {
	f.values[key] = value
	for _, fn := range f.watchers {
		fn(f.values.Clone())
	}
}

func TestRegisterRejectsUnknownKind(t *testing.T) {
	reg := registry.New(zap.NewNop())
	err := reg.Register(newFakeHandle(expedient.Kind("desconocido")))
	require.Error(t, err)
}

func TestChangesFlowToObserverAndSnapshot(t *testing.T) {
	reg := registry.New(zap.NewNop())
	var gotSection expedient.SectionKey
	var gotKind expedient.Kind
	var gotValues expedient.Values
	reg.OnChange(func(section expedient.SectionKey, kind expedient.Kind, values expedient.Values) {
		gotSection, gotKind, gotValues = section, kind, values
	})

	h := newFakeHandle(expedient.KindTonometria)
	require.NoError(t, reg.Register(h))
	h.edit("presionOD", "16")

	require.Equal(t, expedient.SectionDeteccionAlteraciones, gotSection)
	require.Equal(t, expedient.KindTonometria, gotKind)
	require.Equal(t, "16", gotValues["presionOD"])

	snapshot := reg.SectionValues(expedient.SectionDeteccionAlteraciones)
	require.Equal(t, "16", snapshot[expedient.KindTonometria]["presionOD"])
}

func TestReRegistrationCancelsPriorSubscription(t *testing.T) {
	reg := registry.New(zap.NewNop())
	first := newFakeHandle(expedient.KindDatosGenerales)
	require.NoError(t, reg.Register(first))
	require.Zero(t, first.cancels)

	second := newFakeHandle(expedient.KindDatosGenerales)
	require.NoError(t, reg.Register(second))
	require.Equal(t, 1, first.cancels, "prior subscription must be cancelled on re-registration")
}

func TestReRegistrationRestoresCachedValues(t *testing.T) {
	reg := registry.New(zap.NewNop())
	first := newFakeHandle(expedient.KindDatosGenerales)
	require.NoError(t, reg.Register(first))
	first.edit("nombre", "Ana Torres")

	// A record id change re-instantiates the editor; the fresh handle must
	// come back with the cached values.
	second := newFakeHandle(expedient.KindDatosGenerales)
	require.NoError(t, reg.Register(second))
	require.Equal(t, "Ana Torres", second.values["nombre"])
}

func TestRestoreOverwritesHandlesWithoutFeedingChangeStream(t *testing.T) {
	reg := registry.New(zap.NewNop())
	changes := 0
	reg.OnChange(func(expedient.SectionKey, expedient.Kind, expedient.Values) { changes++ })

	h := newFakeHandle(expedient.KindInterrogatorio)
	require.NoError(t, reg.Register(h))

	reg.Restore(expedient.RecordValues{
		expedient.SectionInterrogatorio: {
			expedient.KindInterrogatorio: {"motivoConsulta": "visión borrosa"},
		},
	})
	require.Equal(t, "visión borrosa", h.values["motivoConsulta"])
	require.Zero(t, changes, "restoration must not loop into the change stream")
}

func TestResetAllReturnsDefaults(t *testing.T) {
	reg := registry.New(zap.NewNop())
	h := newFakeHandle(expedient.KindDiagnostico)
	require.NoError(t, reg.Register(h))
	h.edit("diagnostico", "miopía")

	reg.ResetAll()
	require.Equal(t, "", h.values["diagnostico"])
	snapshot := reg.SectionValues(expedient.SectionDiagnostico)
	require.Equal(t, "", snapshot[expedient.KindDiagnostico]["diagnostico"])
}

func TestSectionValuesOnlyIncludesRegisteredKinds(t *testing.T) {
	reg := registry.New(zap.NewNop())
	require.NoError(t, reg.Register(newFakeHandle(expedient.KindCampimetria)))

	snapshot := reg.SectionValues(expedient.SectionDeteccionAlteraciones)
	require.Contains(t, snapshot, expedient.KindCampimetria)
	require.NotContains(t, snapshot, expedient.KindTonometria)
}
