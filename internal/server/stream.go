package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"gocv.io/x/gocv"
)

// StreamBoundary separates the parts of the MJPEG stream.
const StreamBoundary = "frame"

// StreamHandler serves annotated MJPEG frames from the camera.
type StreamHandler struct {
	app    *app.App
	device *capture.Device
	hub    *ResultsHub
}

// NewStreamHandler creates a new StreamHandler. Each request leases the
// device for its whole lifetime.
func NewStreamHandler(a *app.App, device *capture.Device, hub *ResultsHub) *StreamHandler {
	return &StreamHandler{app: a, device: device, hub: hub}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cam, release, err := h.device.Acquire()
	if err != nil {
		if errors.Is(err, capture.ErrDeviceBusy) {
			http.Error(w, "Camera is in use by another stream", http.StatusServiceUnavailable)
			return
		}
		log.Printf("Stream: %v", err)
		http.Error(w, "Camera unavailable", http.StatusServiceUnavailable)
		return
	}
	defer release()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+StreamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	seq := 0

	err = h.app.Stream(r.Context(), cam, func(frame *gocv.Mat, res *app.FrameResult) error {
		buf, err := gocv.IMEncode(".jpg", *frame)
		if err != nil {
			// Drop the frame, keep streaming
			log.Printf("Stream: encode frame: %v", err)
			return nil
		}
		defer buf.Close()

		// Write MJPEG frame
		fmt.Fprintf(w, "--%s\r\n", StreamBoundary)
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		if _, err := w.Write(buf.GetBytes()); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}

		seq++
		h.hub.Publish(FrameEvent{
			Seq:       seq,
			Hands:     res.Hands,
			Results:   res.Results,
			Timestamp: time.Now().UnixMilli(),
		})
		return nil
	})

	if err != nil {
		log.Printf("Stream ended after %d frames: %v", seq, err)
		return
	}

	// Source finished or client left; close the multipart body cleanly
	fmt.Fprintf(w, "--%s--\r\n", StreamBoundary)
}
