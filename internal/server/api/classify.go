package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/store"
)

// ClassifyHandler classifies one uploaded image.
type ClassifyHandler struct {
	classifier Classifier
	store      *store.Store
}

// NewClassifyHandler creates a ClassifyHandler. The store is optional; when
// set, every successful call is recorded in the prediction history.
func NewClassifyHandler(c Classifier, s *store.Store) *ClassifyHandler {
	return &ClassifyHandler{classifier: c, store: s}
}

type classifyResponse struct {
	Status     string           `json:"status"`
	Prediction *string          `json:"prediction"`
	Confidence float64          `json:"confidence"`
	Hands      int              `json:"hands"`
	Box        *app.BoundingBox `json:"box,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// ServeHTTP handles POST /api/classify.
func (h *ClassifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := readImage(w, r)
	if err != nil {
		if errors.Is(err, ErrNoImage) {
			writeError(w, http.StatusBadRequest, "No image provided")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid upload")
		return
	}

	pred, err := h.classifier.Classify(r.Context(), data)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrDecodeFailure):
		writeError(w, http.StatusBadRequest, "Could not decode image")
		return
	case errors.Is(err, classifier.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Model not loaded")
		return
	default:
		log.Printf("classify: %v", err)
		writeError(w, http.StatusInternalServerError, "Classification failed")
		return
	}

	h.record(pred)

	resp := classifyResponse{
		Status:     "success",
		Confidence: pred.Confidence,
		Hands:      pred.Hands,
		Box:        pred.Box,
	}
	if pred.Status == app.StatusSuccess {
		label := pred.Label
		resp.Prediction = &label
	} else {
		resp.Message = "No hands detected"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ClassifyHandler) record(pred *app.Prediction) {
	if h.store == nil {
		return
	}

	rec := &store.Prediction{
		Status:     string(pred.Status),
		Label:      pred.Label,
		Confidence: pred.Confidence,
		Hands:      pred.Hands,
	}
	if info, err := h.classifier.ModelInfo(); err == nil {
		rec.ModelDigest = info.Digest
	}

	if err := h.store.Predictions().Create(rec); err != nil {
		log.Printf("Failed to record prediction: %v", err)
	}
}
