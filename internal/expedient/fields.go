package expedient

// FieldSpec describes one editable field of a sub-form: the value key used in
// snapshots and payloads, and the label the editor renders. Clinical
// validation of individual fields is owned by the section editors.
type FieldSpec struct {
	Key   string
	Label string
}

var fieldsByKind = map[Kind][]FieldSpec{
	KindDatosGenerales: {
		{Key: "nombre", Label: "Nombre completo"},
		{Key: "edad", Label: "Edad"},
		{Key: "ocupacion", Label: "Ocupación"},
		{Key: "telefono", Label: "Teléfono"},
		{Key: "direccion", Label: "Dirección"},
	},
	KindInterrogatorio: {
		{Key: "motivoConsulta", Label: "Motivo de consulta"},
		{Key: "sintomas", Label: "Síntomas"},
		{Key: "antecedentesFamiliares", Label: "Antecedentes familiares"},
		{Key: "antecedentesPersonales", Label: "Antecedentes personales"},
	},
	KindHistoriaVisual: {
		{Key: "usoLentes", Label: "Uso de lentes"},
		{Key: "ultimoExamen", Label: "Último examen"},
		{Key: "cirugias", Label: "Cirugías oculares"},
		{Key: "traumatismos", Label: "Traumatismos"},
	},
	KindAgudezaVisual: {
		{Key: "avLejosOD", Label: "AV lejos OD"},
		{Key: "avLejosOI", Label: "AV lejos OI"},
		{Key: "avCercaOD", Label: "AV cerca OD"},
		{Key: "avCercaOI", Label: "AV cerca OI"},
	},
	KindLensometria: {
		{Key: "esferaOD", Label: "Esfera OD"},
		{Key: "cilindroOD", Label: "Cilindro OD"},
		{Key: "ejeOD", Label: "Eje OD"},
		{Key: "esferaOI", Label: "Esfera OI"},
		{Key: "cilindroOI", Label: "Cilindro OI"},
		{Key: "ejeOI", Label: "Eje OI"},
	},
	KindRetinoscopia: {
		{Key: "esferaOD", Label: "Esfera OD"},
		{Key: "cilindroOD", Label: "Cilindro OD"},
		{Key: "ejeOD", Label: "Eje OD"},
		{Key: "esferaOI", Label: "Esfera OI"},
		{Key: "cilindroOI", Label: "Cilindro OI"},
		{Key: "ejeOI", Label: "Eje OI"},
	},
	KindSubjetivo: {
		{Key: "esferaOD", Label: "Esfera OD"},
		{Key: "cilindroOD", Label: "Cilindro OD"},
		{Key: "ejeOD", Label: "Eje OD"},
		{Key: "esferaOI", Label: "Esfera OI"},
		{Key: "cilindroOI", Label: "Cilindro OI"},
		{Key: "ejeOI", Label: "Eje OI"},
		{Key: "avFinal", Label: "AV final"},
	},
	KindForias: {
		{Key: "foriaLejos", Label: "Foria de lejos"},
		{Key: "foriaCerca", Label: "Foria de cerca"},
		{Key: "metodo", Label: "Método"},
	},
	KindVergencias: {
		{Key: "vergenciaPositiva", Label: "Vergencia positiva"},
		{Key: "vergenciaNegativa", Label: "Vergencia negativa"},
		{Key: "puntoProximo", Label: "Punto próximo de convergencia"},
	},
	KindOftalmoscopia: {
		{Key: "papilaOD", Label: "Papila OD"},
		{Key: "papilaOI", Label: "Papila OI"},
		{Key: "maculaOD", Label: "Mácula OD"},
		{Key: "maculaOI", Label: "Mácula OI"},
		{Key: "imagenOdId", Label: "Imagen OD (id)"},
		{Key: "imagenOiId", Label: "Imagen OI (id)"},
	},
	KindCampimetria: {
		{Key: "resultado", Label: "Resultado"},
		{Key: "observaciones", Label: "Observaciones"},
		{Key: "imagenId", Label: "Imagen (id)"},
	},
	KindTonometria: {
		{Key: "presionOD", Label: "Presión OD (mmHg)"},
		{Key: "presionOI", Label: "Presión OI (mmHg)"},
		{Key: "metodo", Label: "Método"},
	},
	KindDiagnostico: {
		{Key: "diagnostico", Label: "Diagnóstico"},
		{Key: "pronostico", Label: "Pronóstico"},
		{Key: "planTratamiento", Label: "Plan de tratamiento"},
	},
	KindReceta: {
		{Key: "esferaOD", Label: "Esfera OD"},
		{Key: "cilindroOD", Label: "Cilindro OD"},
		{Key: "ejeOD", Label: "Eje OD"},
		{Key: "esferaOI", Label: "Esfera OI"},
		{Key: "cilindroOI", Label: "Cilindro OI"},
		{Key: "ejeOI", Label: "Eje OI"},
		{Key: "material", Label: "Material"},
		{Key: "observaciones", Label: "Observaciones"},
	},
}

// Fields returns the editable field specs for a sub-form kind.
func Fields(kind Kind) []FieldSpec {
	specs := fieldsByKind[kind]
	out := make([]FieldSpec, len(specs))
	copy(out, specs)
	return out
}

// Defaults returns an empty value snapshot covering every field of the kind.
func Defaults(kind Kind) Values {
	values := make(Values)
	for _, spec := range fieldsByKind[kind] {
		values[spec.Key] = ""
	}
	return values
}
