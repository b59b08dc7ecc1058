// Package app provides the main application logic for the Mudra hand-sign
// classification service.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"gocv.io/x/gocv"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultStreamFPS    = 15
	DefaultFrameTimeout = 2 * time.Second
	DefaultPoolSize     = 2
)

// Config holds configuration options for the application.
type Config struct {
	// ModelPath is the model artifact loaded once by New.
	ModelPath string

	// Model, if set, is used instead of loading ModelPath.
	Model classifier.Model

	Labels   gesture.LabelTable
	Detector detector.Config

	// DetectorFactory overrides the MediaPipe-backed factory. It is used for
	// both the single-shot pool and per-stream detectors.
	DetectorFactory detector.Factory

	// PoolSize bounds the detectors shared by single-shot requests.
	PoolSize int

	StreamFPS    int
	FrameTimeout time.Duration
}

// App holds the state shared by every request. Everything in it is set up
// once by New and never replaced afterwards.
type App struct {
	labels       gesture.LabelTable
	model        classifier.Model
	modelInfo    classifier.Info
	modelErr     error
	processor    *Processor
	pool         *detector.Pool
	newStreamDet detector.Factory
	streamFPS    int
	frameTimeout time.Duration
	started      time.Time
}

// New creates a new App instance with the given configuration. A model that
// fails to load is reported once; the App keeps serving everything that
// does not need classification.
func New(config Config) *App {
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultPoolSize
	}
	if config.StreamFPS <= 0 {
		config.StreamFPS = DefaultStreamFPS
	}
	if config.FrameTimeout <= 0 {
		config.FrameTimeout = DefaultFrameTimeout
	}
	if config.Labels.Len() == 0 {
		config.Labels, _ = gesture.NewLabelTable(gesture.DefaultLabels)
	}

	a := &App{
		labels:       config.Labels,
		streamFPS:    config.StreamFPS,
		frameTimeout: config.FrameTimeout,
		started:      time.Now(),
	}

	switch {
	case config.Model != nil:
		a.model = config.Model
		a.modelInfo = classifier.Info{
			Kind:     config.Model.Kind(),
			Classes:  config.Model.Classes(),
			Features: config.Model.Features(),
		}
	default:
		model, info, err := classifier.Load(config.ModelPath)
		if err != nil {
			log.Printf("Classification disabled: %v", err)
			a.modelErr = err
		} else {
			a.model, a.modelInfo = model, info
			log.Printf("Loaded %s model from %s (%d classes, digest %s)", info.Kind, info.Path, info.Classes, info.Digest)
		}
	}

	if a.model != nil && a.model.Classes() != a.labels.Len() {
		log.Printf("Model has %d classes but label table has %d; unmatched classes map to %q",
			a.model.Classes(), a.labels.Len(), gesture.UnknownLabel)
	}

	a.processor = NewProcessor(a.model, a.labels)

	staticFactory := config.DetectorFactory
	streamFactory := config.DetectorFactory
	if staticFactory == nil {
		static := config.Detector
		static.StaticImage = true
		staticFactory = detector.NewFactory(static)

		tracking := config.Detector
		tracking.StaticImage = false
		streamFactory = detector.NewFactory(tracking)
	}
	a.pool = detector.NewPool(staticFactory, config.PoolSize)
	a.newStreamDet = streamFactory

	return a
}

// Labels returns the label table.
func (a *App) Labels() gesture.LabelTable {
	return a.labels
}

// ModelInfo describes the loaded model. The error is non-nil, wrapping
// classifier.ErrModelUnavailable, when no model is loaded.
func (a *App) ModelInfo() (classifier.Info, error) {
	if a.model == nil {
		if a.modelErr != nil {
			return classifier.Info{}, a.modelErr
		}
		return classifier.Info{}, classifier.ErrModelUnavailable
	}
	return a.modelInfo, nil
}

// Uptime returns how long the App has been running.
func (a *App) Uptime() time.Duration {
	return time.Since(a.started)
}

// Classify decodes one image, processes it once and summarizes the first
// classified hand.
func (a *App) Classify(ctx context.Context, data []byte) (*Prediction, error) {
	// Undecodable input is the caller's fault whether or not a model is loaded.
	frame, err := decode(data)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	if a.model == nil {
		_, err := a.ModelInfo()
		return nil, err
	}

	res, err := a.processStatic(ctx, frame)
	if err != nil {
		return nil, err
	}
	return Summarize(res), nil
}

// ClassifyFrame is Classify for an already decoded frame. The frame is
// annotated in place.
func (a *App) ClassifyFrame(ctx context.Context, frame *gocv.Mat) (*FrameResult, error) {
	if a.model == nil {
		_, err := a.ModelInfo()
		return nil, err
	}
	return a.processStatic(ctx, frame)
}

// ExtractSample returns the feature vector of the first well-formed hand in
// an image. It does not need a model.
func (a *App) ExtractSample(ctx context.Context, data []byte) (gesture.FeatureVector, error) {
	frame, err := decode(data)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	d, err := a.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	defer a.pool.Put(d)

	hands, err := d.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	for i := range hands {
		features, err := gesture.Extract(&hands[i])
		if err != nil {
			continue
		}
		return features, nil
	}
	return nil, ErrNoHand
}

func (a *App) processStatic(ctx context.Context, frame *gocv.Mat) (*FrameResult, error) {
	d, err := a.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	defer a.pool.Put(d)

	return a.processor.Process(frame, d)
}

// Close releases pooled detectors.
func (a *App) Close() error {
	return a.pool.Close()
}

func decode(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecodeFailure)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return &mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return nil, ErrDecodeFailure
}
