// Package detector provides hand detection interfaces and types for gesture recognition.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// HandConnections lists the landmark pairs joined when drawing a hand skeleton.
var HandConnections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Point3D is a landmark in normalized image coordinates.
// X and Y are in [0,1] relative to frame width and height; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is the landmark set reported for one detected hand.
// A well-formed set has exactly NumLandmarks points; detector anomalies may
// produce fewer, which consumers must reject rather than pad.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Valid reports whether the hand carries exactly NumLandmarks points.
func (h *HandLandmarks) Valid() bool {
	return h != nil && len(h.Points) == NumLandmarks
}

// Bounds returns the min and max X and Y over all points.
// ok is false when the hand has no points.
func (h *HandLandmarks) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if h == nil || len(h.Points) == 0 {
		return 0, 0, 0, 0, false
	}

	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range h.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY, true
}

// Clone returns a deep copy of the hand.
func (h *HandLandmarks) Clone() HandLandmarks {
	out := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	out.Points = append([]Point3D(nil), h.Points...)
	return out
}
