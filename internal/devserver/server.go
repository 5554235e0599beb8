// internal/devserver/server.go
//
// An in-memory implementation of the persistence API so the editor can be
// exercised locally without the clinic backend.

package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/drvillela/expediente/internal/expedient"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxUploadBytes = 12 << 20

// Server serves the development persistence API.
type Server struct {
	store  *memoryStore
	logger *zap.Logger
}

// New creates a dev server with an empty in-memory store.
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: newMemoryStore(), logger: logger}
}

// Router builds the chi router for the API.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/expedientes", func(r chi.Router) {
		r.Post("/", s.createRecord)
		r.Get("/{recordID}", s.getRecord)
		r.Patch("/{recordID}/secciones/{section}", s.patchSection)
		r.Post("/{recordID}/imagenes", s.uploadImage)
	})
	return r
}

type createRequest struct {
	Secciones expedient.RecordValues `json:"secciones"`
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := s.store.create(req.Secciones)
	s.logger.Info("record created", zap.Int("record_id", id))
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	record, err := s.store.get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) patchSection(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	section := expedient.SectionKey(chi.URLParam(r, "section"))
	if !section.Valid() {
		writeError(w, http.StatusBadRequest, "unknown section")
		return
	}
	var payload expedient.SectionValues
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for kind := range payload {
		owner, err := expedient.Classify(kind)
		if err != nil || owner != section {
			writeError(w, http.StatusBadRequest, "sub-form does not belong to section")
			return
		}
	}
	if err := s.store.patch(id, section, payload); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("section patched",
		zap.Int("record_id", id),
		zap.String("section", string(section)),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	slot := expedient.Slot(r.FormValue("slot"))
	if _, ok := slot.Owner(); !ok {
		writeError(w, http.StatusBadRequest, "unknown slot")
		return
	}
	imageID, err := s.store.storeImage(id, slot, header.Filename, data)
	if err != nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	s.logger.Info("image stored",
		zap.Int("record_id", id),
		zap.String("slot", string(slot)),
		zap.String("image_id", imageID),
	)
	writeJSON(w, http.StatusCreated, map[string]any{"imageId": imageID})
}

func recordID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "recordID"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
