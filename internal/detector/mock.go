package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns copies of the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.hands == nil {
		return nil, nil
	}

	out := make([]HandLandmarks, len(m.hands))
	for i := range m.hands {
		out[i] = m.hands[i].Clone()
	}
	return out, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// HandInBox returns a well-formed hand whose 21 points span exactly the box
// (minX,minY)-(maxX,maxY). The wrist sits at the bottom-left corner and the
// middle fingertip at the top-right corner.
func HandInBox(minX, minY, maxX, maxY float64) HandLandmarks {
	hand := HandLandmarks{
		Handedness: "Right",
		Score:      0.9,
		Points:     make([]Point3D, NumLandmarks),
	}

	for i := range hand.Points {
		t := float64(i) / float64(NumLandmarks-1)
		hand.Points[i] = Point3D{
			X: minX + t*(maxX-minX)*0.5,
			Y: maxY - t*(maxY-minY)*0.5,
		}
	}
	hand.Points[Wrist] = Point3D{X: minX, Y: maxY}
	hand.Points[MiddleTip] = Point3D{X: maxX, Y: minY}

	return hand
}

// TruncatedHand returns a hand with only n points, as an anomalous detector
// might report.
func TruncatedHand(n int) HandLandmarks {
	hand := OpenPalmLandmarks()
	if n < len(hand.Points) {
		hand.Points = hand.Points[:n]
	}
	return hand
}

// ThumbsUpLandmarks returns a preset HandLandmarks representing a thumbs up gesture.
// The thumb is extended upward while other fingers are curled.
func ThumbsUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points:     make([]Point3D, NumLandmarks),
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (pointing up, Y decreases going up)
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	landmarks.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	landmarks.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	landmarks.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	landmarks.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	landmarks.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	landmarks.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	landmarks.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return landmarks
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points:     make([]Point3D, NumLandmarks),
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}
