// internal/expedient/expedient.go
//
// Vocabulary for the clinical record: the ordered section set, the sub-form
// kinds that belong to each section, and the attachment slots. Everything
// else in the editor is written against these identifiers.

package expedient

import "fmt"

// SectionKey identifies one top-level part of the record. Sections are saved
// independently and may be visited in any order.
type SectionKey string

const (
	SectionDatosGenerales        SectionKey = "datos-generales"
	SectionInterrogatorio        SectionKey = "interrogatorio"
	SectionHistoriaVisual        SectionKey = "historia-visual"
	SectionExamenPreliminar      SectionKey = "examen-preliminar"
	SectionEstadoRefractivo      SectionKey = "estado-refractivo"
	SectionBinocularidad         SectionKey = "binocularidad"
	SectionDeteccionAlteraciones SectionKey = "deteccion-alteraciones"
	SectionDiagnostico           SectionKey = "diagnostico"
	SectionReceta                SectionKey = "receta"
)

// SectionOrder lists every section in the order the record presents them.
var SectionOrder = []SectionKey{
	SectionDatosGenerales,
	SectionInterrogatorio,
	SectionHistoriaVisual,
	SectionExamenPreliminar,
	SectionEstadoRefractivo,
	SectionBinocularidad,
	SectionDeteccionAlteraciones,
	SectionDiagnostico,
	SectionReceta,
}

var sectionTitles = map[SectionKey]string{
	SectionDatosGenerales:        "Datos generales",
	SectionInterrogatorio:        "Interrogatorio",
	SectionHistoriaVisual:        "Historia visual",
	SectionExamenPreliminar:      "Examen preliminar",
	SectionEstadoRefractivo:      "Estado refractivo",
	SectionBinocularidad:         "Binocularidad",
	SectionDeteccionAlteraciones: "Detección de alteraciones",
	SectionDiagnostico:           "Diagnóstico",
	SectionReceta:                "Receta final",
}

// Valid reports whether the key names a known section.
func (k SectionKey) Valid() bool {
	_, ok := sectionTitles[k]
	return ok
}

// Title returns the display name for the section.
func (k SectionKey) Title() string {
	if title, ok := sectionTitles[k]; ok {
		return title
	}
	return string(k)
}

// Kind tags one sub-form of the record. Section editors emit a (kind, handle)
// pair, so identifying an incoming form never requires probing its fields:
// the tag alone decides which sub-form it is and which section owns it.
type Kind string

const (
	KindDatosGenerales Kind = "datos-generales"
	KindInterrogatorio Kind = "interrogatorio"
	KindHistoriaVisual Kind = "historia-visual"
	KindAgudezaVisual  Kind = "agudeza-visual"
	KindLensometria    Kind = "lensometria"
	KindRetinoscopia   Kind = "retinoscopia"
	KindSubjetivo      Kind = "subjetivo"
	KindForias         Kind = "forias"
	KindVergencias     Kind = "vergencias"
	KindOftalmoscopia  Kind = "oftalmoscopia"
	KindCampimetria    Kind = "campimetria"
	KindTonometria     Kind = "tonometria"
	KindDiagnostico    Kind = "diagnostico"
	KindReceta         Kind = "receta"
)

// kindsBySection is the classification table. Each kind appears under exactly
// one section, which keeps classification total and mutually exclusive.
var kindsBySection = map[SectionKey][]Kind{
	SectionDatosGenerales:        {KindDatosGenerales},
	SectionInterrogatorio:        {KindInterrogatorio},
	SectionHistoriaVisual:        {KindHistoriaVisual},
	SectionExamenPreliminar:      {KindAgudezaVisual, KindLensometria},
	SectionEstadoRefractivo:      {KindRetinoscopia, KindSubjetivo},
	SectionBinocularidad:         {KindForias, KindVergencias},
	SectionDeteccionAlteraciones: {KindOftalmoscopia, KindCampimetria, KindTonometria},
	SectionDiagnostico:           {KindDiagnostico},
	SectionReceta:                {KindReceta},
}

var sectionByKind = buildSectionIndex()

func buildSectionIndex() map[Kind]SectionKey {
	index := make(map[Kind]SectionKey)
	for _, section := range SectionOrder {
		for _, kind := range kindsBySection[section] {
			index[kind] = section
		}
	}
	return index
}

// Classify resolves the section that owns a sub-form kind. Unknown kinds are
// a classification error: the caller logs and excludes that emission without
// touching sibling sub-forms.
func Classify(kind Kind) (SectionKey, error) {
	section, ok := sectionByKind[kind]
	if !ok {
		return "", fmt.Errorf("expedient: unknown sub-form kind %q", kind)
	}
	return section, nil
}

// KindsFor returns the sub-form kinds owned by a section, in display order.
func KindsFor(section SectionKey) []Kind {
	kinds := kindsBySection[section]
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Values is a flat snapshot of one sub-form's data. The registry owns the
// canonical copy; everything else works with clones.
type Values map[string]string

// Clone returns an independent copy of the values.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// SectionValues maps sub-form kinds to their value snapshots.
type SectionValues map[Kind]Values

// RecordValues holds every section's sub-form snapshots.
type RecordValues map[SectionKey]SectionValues

// Clone deep-copies the record values.
func (r RecordValues) Clone() RecordValues {
	if r == nil {
		return nil
	}
	out := make(RecordValues, len(r))
	for section, kinds := range r {
		cloned := make(SectionValues, len(kinds))
		for kind, values := range kinds {
			cloned[kind] = values.Clone()
		}
		out[section] = cloned
	}
	return out
}

// Record is the server's authoritative snapshot of one clinical record.
type Record struct {
	ID        int          `json:"id"`
	Secciones RecordValues `json:"secciones"`
	Completas []SectionKey `json:"completas,omitempty"`
}

// Clone deep-copies the record.
func (r Record) Clone() Record {
	out := Record{ID: r.ID, Secciones: r.Secciones.Clone()}
	if r.Completas != nil {
		out.Completas = append([]SectionKey(nil), r.Completas...)
	}
	return out
}
