package expedient

// Slot names one logical image location within the record. A slot is bound to
// the sub-form field that carries its server-assigned image id.
type Slot string

const (
	SlotCampimetria     Slot = "campimetria"
	SlotOftalmoscopiaOD Slot = "oftalmoscopiaOD"
	SlotOftalmoscopiaOI Slot = "oftalmoscopiaOI"
)

// SlotOwner ties a slot to the section, sub-form, and field that own it.
type SlotOwner struct {
	Section SectionKey
	Kind    Kind
	Field   string
}

var slotOwners = map[Slot]SlotOwner{
	SlotCampimetria:     {Section: SectionDeteccionAlteraciones, Kind: KindCampimetria, Field: "imagenId"},
	SlotOftalmoscopiaOD: {Section: SectionDeteccionAlteraciones, Kind: KindOftalmoscopia, Field: "imagenOdId"},
	SlotOftalmoscopiaOI: {Section: SectionDeteccionAlteraciones, Kind: KindOftalmoscopia, Field: "imagenOiId"},
}

// slotOrder keeps slot listings deterministic.
var slotOrder = []Slot{SlotCampimetria, SlotOftalmoscopiaOD, SlotOftalmoscopiaOI}

// Owner returns the owning section, kind, and field for a slot.
func (s Slot) Owner() (SlotOwner, bool) {
	owner, ok := slotOwners[s]
	return owner, ok
}

// Slots lists every known slot in a stable order.
func Slots() []Slot {
	out := make([]Slot, len(slotOrder))
	copy(out, slotOrder)
	return out
}

// SlotsFor lists the slots owned by a section, in a stable order.
func SlotsFor(section SectionKey) []Slot {
	var out []Slot
	for _, slot := range slotOrder {
		if slotOwners[slot].Section == section {
			out = append(out, slot)
		}
	}
	return out
}
