// Package api provides HTTP API handlers for the Mudra hand-sign service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/gesture"
)

// MaxUploadBytes bounds uploaded images.
const MaxUploadBytes = 10 << 20

// ErrNoImage is returned when a request carries no image data.
var ErrNoImage = errors.New("no image provided")

// Classifier runs single-shot classification.
type Classifier interface {
	Classify(ctx context.Context, data []byte) (*app.Prediction, error)
	ModelInfo() (classifier.Info, error)
}

// SampleExtractor turns an uploaded image into a training feature vector.
type SampleExtractor interface {
	ExtractSample(ctx context.Context, data []byte) (gesture.FeatureVector, error)
	Labels() gesture.LabelTable
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// readImage returns the uploaded image bytes. Multipart requests carry the
// image in the "image" field; any other request body is taken as the image
// itself.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, ErrNoImage
		}
		defer file.Close()
		return readAll(file)
	}

	return readAll(r.Body)
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}
