package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/store"
)

// SamplesHandler handles HTTP requests for training sample resources.
type SamplesHandler struct {
	extractor SampleExtractor
	store     *store.Store
}

// NewSamplesHandler creates a new SamplesHandler.
func NewSamplesHandler(e SampleExtractor, s *store.Store) *SamplesHandler {
	return &SamplesHandler{extractor: e, store: s}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/samples and /api/samples/{id}
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/samples"), "/")

	if id != "" {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.delete(w, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodDelete:
		h.deleteLabel(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Response types

type sampleCountsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type listSamplesResponse struct {
	Samples []store.Sample `json:"samples"`
}

type createSampleResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// list handles GET /api/samples. Without a label it returns per-label
// counts for every label in the table; with ?label= it lists the samples.
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request) {
	if label := r.URL.Query().Get("label"); label != "" {
		samples, err := h.store.Samples().List(label)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list samples")
			return
		}
		if samples == nil {
			samples = []store.Sample{}
		}
		writeJSON(w, http.StatusOK, listSamplesResponse{Samples: samples})
		return
	}

	counts, err := h.store.Samples().Counts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count samples")
		return
	}

	response := sampleCountsResponse{Counts: make(map[string]int)}
	for _, label := range h.extractor.Labels().Symbols() {
		response.Counts[label] = 0
	}
	for label, n := range counts {
		response.Counts[label] = n
		response.Total += n
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/samples with a multipart "image" and "label".
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request) {
	data, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	label := strings.TrimSpace(r.FormValue("label"))
	if label == "" {
		writeError(w, http.StatusBadRequest, "Label is required")
		return
	}
	if _, ok := h.extractor.Labels().Index(label); !ok {
		writeError(w, http.StatusBadRequest, "Unknown label")
		return
	}

	features, err := h.extractor.ExtractSample(r.Context(), data)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrDecodeFailure):
		writeError(w, http.StatusBadRequest, "Could not decode image")
		return
	case errors.Is(err, app.ErrNoHand):
		writeError(w, http.StatusUnprocessableEntity, "No hands detected")
		return
	default:
		writeError(w, http.StatusInternalServerError, "Failed to extract sample")
		return
	}

	sample := &store.Sample{Label: label, Features: features}
	if err := h.store.Samples().Create(sample); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save sample")
		return
	}

	writeJSON(w, http.StatusCreated, createSampleResponse{ID: sample.ID, Label: sample.Label})
}

// delete handles DELETE /api/samples/{id}
func (h *SamplesHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Samples().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete sample")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// deleteLabel handles DELETE /api/samples?label=X
func (h *SamplesHandler) deleteLabel(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		writeError(w, http.StatusBadRequest, "Label is required")
		return
	}

	n, err := h.store.Samples().DeleteByLabel(label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
