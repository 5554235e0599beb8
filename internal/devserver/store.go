package devserver

import (
	"errors"
	"sync"

	"github.com/drvillela/expediente/internal/expedient"
	"github.com/google/uuid"
)

// ErrRecordNotFound is returned for unknown record ids.
var ErrRecordNotFound = errors.New("devserver: record not found")

type storedImage struct {
	Slot     expedient.Slot
	FileName string
	Data     []byte
}

// memoryStore keeps records and images in memory for local development.
type memoryStore struct {
	mu      sync.Mutex
	nextID  int
	records map[int]*expedient.Record
	images  map[string]storedImage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:  1,
		records: make(map[int]*expedient.Record),
		images:  make(map[string]storedImage),
	}
}

func (s *memoryStore) create(secciones expedient.RecordValues) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	record := &expedient.Record{ID: id, Secciones: secciones.Clone()}
	if record.Secciones == nil {
		record.Secciones = make(expedient.RecordValues)
	}
	s.records[id] = record
	return id
}

func (s *memoryStore) get(id int) (expedient.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return expedient.Record{}, ErrRecordNotFound
	}
	out := expedient.Record{ID: record.ID, Secciones: record.Secciones.Clone()}
	out.Completas = append(out.Completas, record.Completas...)
	return out, nil
}

// patch overwrites sub-form values field by field; resubmission replaces,
// it never appends. A section with payloads for every one of its sub-forms
// is marked complete.
func (s *memoryStore) patch(id int, section expedient.SectionKey, payload expedient.SectionValues) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	kinds, ok := record.Secciones[section]
	if !ok {
		kinds = make(expedient.SectionValues)
		record.Secciones[section] = kinds
	}
	for kind, values := range payload {
		kinds[kind] = values.Clone()
	}
	if s.sectionCovered(record, section) && !containsSection(record.Completas, section) {
		record.Completas = append(record.Completas, section)
	}
	return nil
}

func (s *memoryStore) sectionCovered(record *expedient.Record, section expedient.SectionKey) bool {
	kinds := record.Secciones[section]
	for _, kind := range expedient.KindsFor(section) {
		if _, ok := kinds[kind]; !ok {
			return false
		}
	}
	return true
}

func (s *memoryStore) storeImage(id int, slot expedient.Slot, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return "", ErrRecordNotFound
	}
	imageID := uuid.NewString()
	s.images[imageID] = storedImage{Slot: slot, FileName: fileName, Data: data}
	return imageID, nil
}

func containsSection(list []expedient.SectionKey, section expedient.SectionKey) bool {
	for _, key := range list {
		if key == section {
			return true
		}
	}
	return false
}
