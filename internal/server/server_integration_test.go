package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/testdata"
)

func uploadForm(t *testing.T, image []byte, label string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "hand.jpg")
	part.Write(image)
	if label != "" {
		mw.WriteField("label", label)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestAPI_ClassificationWorkflow(t *testing.T) {
	// Setup
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.HandInBox(0.4, 0.3, 0.6, 0.5)})

	srv := New(Config{App: newTestApp(t, det), Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	image, err := testdata.JPEG(7)
	if err != nil {
		t.Fatalf("JPEG() error = %v", err)
	}

	// 1. Record a training sample
	body, ct := uploadForm(t, image, "C")
	resp, err := client.Post(ts.URL+"/api/samples", ct, body)
	if err != nil {
		t.Fatalf("POST /api/samples error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/samples status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	// 2. Sample counts
	resp, _ = client.Get(ts.URL + "/api/samples")
	var counts struct {
		Counts map[string]int `json:"counts"`
		Total  int            `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&counts)
	resp.Body.Close()
	if counts.Total != 1 || counts.Counts["C"] != 1 {
		t.Errorf("counts = %+v, want C:1", counts)
	}

	// 3. Classify via both routes
	for _, path := range []string{"/api/classify", "/classify"} {
		body, ct := uploadForm(t, image, "")
		resp, err := client.Post(ts.URL+path, ct, body)
		if err != nil {
			t.Fatalf("POST %s error = %v", path, err)
		}
		var result struct {
			Status     string  `json:"status"`
			Prediction *string `json:"prediction"`
			Confidence float64 `json:"confidence"`
		}
		json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK || result.Status != "success" {
			t.Fatalf("POST %s = %d %+v", path, resp.StatusCode, result)
		}
		if result.Prediction == nil || *result.Prediction != "C" || result.Confidence <= 0 {
			t.Errorf("POST %s prediction = %v (%v), want C", path, result.Prediction, result.Confidence)
		}
	}

	// 4. Undecodable upload is a client error
	body, ct = uploadForm(t, testdata.Garbage, "")
	resp, _ = client.Post(ts.URL+"/api/classify", ct, body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("garbage upload status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	// 5. History holds the two successful calls
	resp, _ = client.Get(ts.URL + "/api/predictions?limit=10")
	var history struct {
		Predictions []store.Prediction `json:"predictions"`
		Total       int                `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&history)
	resp.Body.Close()
	if history.Total != 2 || len(history.Predictions) != 2 {
		t.Errorf("history = %+v, want 2 predictions", history)
	}
}

func TestAPI_ClassifyWithoutModel(t *testing.T) {
	a := app.New(app.Config{
		ModelPath:       filepath.Join(t.TempDir(), "missing.json"),
		DetectorFactory: func() (detector.Detector, error) { return detector.NewMockDetector(), nil },
	})
	defer a.Close()

	ts := httptest.NewServer(New(Config{App: a}))
	defer ts.Close()

	image, err := testdata.JPEG(3)
	if err != nil {
		t.Fatalf("JPEG() error = %v", err)
	}

	tests := []struct {
		name string
		body []byte
		want int
	}{
		{"undecodable upload is a client error", testdata.Garbage, http.StatusBadRequest},
		{"valid image needs the model", image, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := uploadForm(t, tt.body, "")
			resp, err := ts.Client().Post(ts.URL+"/api/classify", ct, body)
			if err != nil {
				t.Fatalf("POST /api/classify error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
