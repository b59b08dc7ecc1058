package app

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrDecodeFailure is returned when image bytes cannot be decoded into a frame.
	ErrDecodeFailure = errors.New("image could not be decoded")

	// ErrClassificationFault is recorded when the model fails for one hand.
	ErrClassificationFault = errors.New("classification fault")

	// ErrNoHand is returned when an operation needs a hand and none was found.
	ErrNoHand = errors.New("no hand detected")

	// ErrFrameTimeout is returned when one frame takes longer than the
	// configured per-frame budget.
	ErrFrameTimeout = errors.New("frame processing timed out")
)

// BoundingBox is an axis-aligned box in pixel coordinates. It may extend
// past the frame edges.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// ClassificationResult is the outcome for one classified hand.
type ClassificationResult struct {
	Label      string       `json:"label"`
	Class      int          `json:"class"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// HandFault records why a detected hand produced no result.
type HandFault struct {
	Hand int   `json:"hand"`
	Err  error `json:"-"`
}

// FrameResult is one processed frame. Results are in detector order and
// only contain hands that were classified; skipped hands appear in Faults.
type FrameResult struct {
	Frame   *gocv.Mat              `json:"-"`
	Hands   int                    `json:"hands"`
	Results []ClassificationResult `json:"results"`
	Faults  []HandFault            `json:"-"`
}

// Status tags a single-shot prediction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoHand  Status = "no_hand"
)

// Prediction summarizes the first classified hand of a single image.
type Prediction struct {
	Status     Status       `json:"status"`
	Label      string       `json:"label,omitempty"`
	Confidence float64      `json:"confidence"`
	Hands      int          `json:"hands"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// Summarize reduces a frame result to the single-shot prediction.
func Summarize(res *FrameResult) *Prediction {
	if res == nil || len(res.Results) == 0 {
		p := &Prediction{Status: StatusNoHand}
		if res != nil {
			p.Hands = res.Hands
		}
		return p
	}

	first := res.Results[0]
	return &Prediction{
		Status:     StatusSuccess,
		Label:      first.Label,
		Confidence: first.Confidence,
		Hands:      res.Hands,
		Box:        first.Box,
	}
}
