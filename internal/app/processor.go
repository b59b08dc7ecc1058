package app

import (
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"gocv.io/x/gocv"
)

// BoxMargin is the outward padding applied to hand bounding boxes, in pixels.
const BoxMargin = 10

// Processor turns one frame into a FrameResult: detect, extract, classify,
// annotate. It holds no per-frame state and is safe for concurrent use as
// long as each caller brings its own detector.
type Processor struct {
	model  classifier.Model
	labels gesture.LabelTable
}

// NewProcessor creates a processor. A nil model disables classification;
// frames then pass through untouched.
func NewProcessor(model classifier.Model, labels gesture.LabelTable) *Processor {
	return &Processor{model: model, labels: labels}
}

// Process runs the detector on frame and classifies every detected hand.
// The frame is annotated in place. Per-hand failures are recorded in
// FrameResult.Faults; only detector failures are returned as errors.
func (p *Processor) Process(frame *gocv.Mat, d detector.Detector) (*FrameResult, error) {
	res := &FrameResult{Frame: frame, Results: []ClassificationResult{}}

	if p.model == nil || frame == nil || frame.Empty() {
		return res, nil
	}

	hands, err := d.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}
	res.Hands = len(hands)

	width, height := frame.Cols(), frame.Rows()

	for i := range hands {
		hand := &hands[i]
		drawSkeleton(frame, hand, width, height)

		result, err := p.classifyHand(hand, width, height)
		if err != nil {
			res.Faults = append(res.Faults, HandFault{Hand: i, Err: err})
			continue
		}

		drawResult(frame, result)
		res.Results = append(res.Results, result)
	}

	return res, nil
}

func (p *Processor) classifyHand(hand *detector.HandLandmarks, width, height int) (ClassificationResult, error) {
	features, err := gesture.Extract(hand)
	if err != nil {
		return ClassificationResult{}, err
	}

	class, confidence, err := p.predict(features)
	if err != nil {
		return ClassificationResult{}, err
	}

	result := ClassificationResult{
		Label:      p.labels.Lookup(class),
		Class:      class,
		Confidence: confidence,
	}
	if box, ok := BoxFor(hand, width, height); ok {
		result.Box = &box
	}
	return result, nil
}

// predict returns the 1-based class and its probability. Any model error,
// panic or unusable distribution becomes ErrClassificationFault.
func (p *Processor) predict(features gesture.FeatureVector) (class int, confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrClassificationFault, r)
		}
	}()

	dist, err := p.model.PredictProba(features)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrClassificationFault, err)
	}

	idx, prob, err := classifier.Best(dist)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrClassificationFault, err)
	}

	return idx + 1, prob, nil
}

// BoxFor computes the margin-padded pixel bounding box of a hand in a
// width x height frame.
func BoxFor(hand *detector.HandLandmarks, width, height int) (BoundingBox, bool) {
	minX, minY, maxX, maxY, ok := hand.Bounds()
	if !ok {
		return BoundingBox{}, false
	}

	w, h := float64(width), float64(height)
	return BoundingBox{
		X1: int(math.Floor(minX*w)) - BoxMargin,
		Y1: int(math.Floor(minY*h)) - BoxMargin,
		X2: int(math.Floor(maxX*w)) + BoxMargin,
		Y2: int(math.Floor(maxY*h)) + BoxMargin,
	}, true
}
