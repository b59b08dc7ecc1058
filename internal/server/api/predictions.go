package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// Prediction history page sizes.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500
)

// PredictionsHandler serves the single-shot prediction history.
type PredictionsHandler struct {
	store *store.Store
}

// NewPredictionsHandler creates a new PredictionsHandler.
func NewPredictionsHandler(s *store.Store) *PredictionsHandler {
	return &PredictionsHandler{store: s}
}

type listPredictionsResponse struct {
	Predictions []*store.Prediction `json:"predictions"`
	Total       int                 `json:"total"`
}

// ServeHTTP handles GET /api/predictions?limit=N.
func (h *PredictionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	predictions, err := h.store.Predictions().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list predictions")
		return
	}
	total, err := h.store.Predictions().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count predictions")
		return
	}

	if predictions == nil {
		predictions = []*store.Prediction{}
	}
	writeJSON(w, http.StatusOK, listPredictionsResponse{Predictions: predictions, Total: total})
}

// LabelsHandler serves the label table.
type LabelsHandler struct {
	labels gesture.LabelTable
}

// NewLabelsHandler creates a new LabelsHandler.
func NewLabelsHandler(labels gesture.LabelTable) *LabelsHandler {
	return &LabelsHandler{labels: labels}
}

type labelEntry struct {
	Class  int    `json:"class"`
	Symbol string `json:"symbol"`
}

// ServeHTTP handles GET /api/labels.
func (h *LabelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbols := h.labels.Symbols()
	entries := make([]labelEntry, len(symbols))
	for i, s := range symbols {
		idx, _ := h.labels.Index(s)
		entries[i] = labelEntry{Class: idx, Symbol: s}
	}

	writeJSON(w, http.StatusOK, map[string]any{"labels": entries})
}
