package detector

import (
	"log"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
//
// Implementations may keep tracking state between calls and are not safe for
// concurrent use. Confine one instance to one stream, or borrow from a Pool.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Factory creates a fresh, independently owned Detector.
type Factory func() (Detector, error)

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// StaticImage disables cross-frame tracking. Use it for unrelated
	// single images; leave it off for a continuous video session.
	StaticImage bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.3,
		MinTrackingConf: 0.5,
	}
}

// NewFactory returns a Factory producing MediaPipe detectors with the given
// configuration. When the MediaPipe service script cannot be found, the
// factory falls back to a MockDetector that never reports hands.
func NewFactory(config Config) Factory {
	return func() (Detector, error) {
		mp, err := NewMediaPipeDetector(config)
		if err != nil {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			return NewMockDetector(), nil
		}
		return mp, nil
	}
}
