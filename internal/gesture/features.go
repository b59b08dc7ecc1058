// Package gesture turns detected hand landmarks into classifier inputs and
// maps classifier outputs back to sign symbols.
package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// FeatureLength is the size of a feature vector: two axes per landmark.
const FeatureLength = detector.NumLandmarks * 2

// ErrMalformedLandmarks is returned when a landmark set does not have exactly
// detector.NumLandmarks points.
var ErrMalformedLandmarks = errors.New("malformed landmarks")

// FeatureVector is the translation-normalized geometry of one hand:
// x0, y0, x1, y1, ... x20, y20.
type FeatureVector []float64

// Extract builds the feature vector for a single hand.
//
// Each point is shifted by the minimum x and minimum y over the hand, so the
// hand's position in the frame does not matter while its scale and shape are
// kept. Z is ignored.
func Extract(hand *detector.HandLandmarks) (FeatureVector, error) {
	if hand == nil {
		return nil, fmt.Errorf("%w: no hand", ErrMalformedLandmarks)
	}
	if len(hand.Points) != detector.NumLandmarks {
		return nil, fmt.Errorf("%w: got %d points, want %d",
			ErrMalformedLandmarks, len(hand.Points), detector.NumLandmarks)
	}

	minX, minY, _, _, _ := hand.Bounds()

	fv := make(FeatureVector, 0, FeatureLength)
	for _, p := range hand.Points {
		fv = append(fv, p.X-minX, p.Y-minY)
	}
	return fv, nil
}
