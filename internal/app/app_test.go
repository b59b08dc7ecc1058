package app

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/testdata"
	"gocv.io/x/gocv"
)

// stubModel returns dist for every call, or whatever predict decides.
type stubModel struct {
	mu      sync.Mutex
	dist    []float64
	predict func(call int) ([]float64, error)
	calls   int
}

func (m *stubModel) Kind() string  { return "stub" }
func (m *stubModel) Classes() int  { return 6 }
func (m *stubModel) Features() int { return gesture.FeatureLength }

func (m *stubModel) PredictProba(features []float64) ([]float64, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if len(features) != gesture.FeatureLength {
		return nil, classifier.ErrFeatureLength
	}
	if m.predict != nil {
		return m.predict(call)
	}
	return append([]float64(nil), m.dist...), nil
}

var sampleDist = []float64{0.1, 0.05, 0.7, 0.05, 0.05, 0.05}

func defaultLabels(t *testing.T) gesture.LabelTable {
	t.Helper()
	labels, err := gesture.NewLabelTable(gesture.DefaultLabels)
	if err != nil {
		t.Fatalf("NewLabelTable() error = %v", err)
	}
	return labels
}

func TestBoxFor(t *testing.T) {
	hand := detector.HandInBox(0.4, 0.3, 0.6, 0.5)

	box, ok := BoxFor(&hand, 640, 480)
	if !ok {
		t.Fatal("BoxFor() returned ok = false")
	}

	want := BoundingBox{X1: 246, Y1: 134, X2: 394, Y2: 250}
	if box != want {
		t.Errorf("BoxFor() = %+v, want %+v", box, want)
	}
}

func TestBoxFor_ExtendsPastFrame(t *testing.T) {
	hand := detector.HandInBox(0, 0, 1, 1)

	box, _ := BoxFor(&hand, 640, 480)
	want := BoundingBox{X1: -10, Y1: -10, X2: 650, Y2: 490}
	if box != want {
		t.Errorf("BoxFor() = %+v, want %+v", box, want)
	}
}

func TestProcessor_Distribution(t *testing.T) {
	frame := testdata.NewFrame(0)
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.HandInBox(0.4, 0.3, 0.6, 0.5)})

	p := NewProcessor(&stubModel{dist: sampleDist}, defaultLabels(t))
	res, err := p.Process(frame, det)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(res.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(res.Results))
	}
	got := res.Results[0]
	if got.Label != "C" || got.Class != 3 {
		t.Errorf("label = %q (class %d), want C (class 3)", got.Label, got.Class)
	}
	if math.Abs(got.Confidence-0.7) > 1e-9 {
		t.Errorf("confidence = %v, want 0.7", got.Confidence)
	}
	if got.Box == nil || *got.Box != (BoundingBox{X1: 246, Y1: 134, X2: 394, Y2: 250}) {
		t.Errorf("box = %+v, want 246,134,394,250", got.Box)
	}
}

func TestProcessor_ZeroHandsLeavesFrameUnchanged(t *testing.T) {
	frame := testdata.NewFrame(3)
	defer frame.Close()
	before := frame.ToBytes()

	det := detector.NewMockDetector()
	p := NewProcessor(&stubModel{dist: sampleDist}, defaultLabels(t))

	res, err := p.Process(frame, det)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Results == nil || len(res.Results) != 0 {
		t.Errorf("Results = %v, want empty non-nil slice", res.Results)
	}
	if !bytes.Equal(before, frame.ToBytes()) {
		t.Error("frame was modified although no hands were detected")
	}
	if det.Calls() != 1 {
		t.Errorf("detector calls = %d, want 1", det.Calls())
	}
}

func TestProcessor_TwoHands(t *testing.T) {
	frame := testdata.NewFrame(1)
	defer frame.Close()
	before := frame.ToBytes()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{
		detector.HandInBox(0.1, 0.1, 0.3, 0.4),
		detector.HandInBox(0.6, 0.5, 0.9, 0.9),
	})

	model := &stubModel{predict: func(call int) ([]float64, error) {
		if call == 1 {
			return []float64{0.9, 0.02, 0.02, 0.02, 0.02, 0.02}, nil
		}
		return []float64{0.02, 0.02, 0.02, 0.02, 0.02, 0.9}, nil
	}}

	res, err := NewProcessor(model, defaultLabels(t)).Process(frame, det)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if res.Hands != 2 || len(res.Results) != 2 {
		t.Fatalf("Hands = %d, Results = %d, want 2 and 2", res.Hands, len(res.Results))
	}
	if res.Results[0].Label != "A" || res.Results[1].Label != "F" {
		t.Errorf("labels = %q, %q, want A, F", res.Results[0].Label, res.Results[1].Label)
	}
	if *res.Results[0].Box == *res.Results[1].Box {
		t.Error("both hands got the same bounding box")
	}
	if bytes.Equal(before, frame.ToBytes()) {
		t.Error("frame was not annotated")
	}
}

func TestProcessor_SkipsFailedHands(t *testing.T) {
	frame := testdata.NewFrame(2)
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{
		detector.TruncatedHand(15),
		detector.HandInBox(0.1, 0.1, 0.3, 0.4),
		detector.HandInBox(0.5, 0.5, 0.7, 0.7),
		detector.HandInBox(0.2, 0.6, 0.4, 0.9),
		detector.HandInBox(0.6, 0.1, 0.8, 0.3),
	})

	model := &stubModel{predict: func(call int) ([]float64, error) {
		switch call {
		case 2:
			panic("model exploded")
		case 3:
			return nil, errors.New("internal error")
		case 4:
			return []float64{math.NaN(), 0.5}, nil
		}
		return sampleDist, nil
	}}

	res, err := NewProcessor(model, defaultLabels(t)).Process(frame, det)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if res.Hands != 5 {
		t.Errorf("Hands = %d, want 5", res.Hands)
	}
	if len(res.Results) != 1 || res.Results[0].Label != "C" {
		t.Fatalf("Results = %+v, want one C result", res.Results)
	}
	if len(res.Faults) != 4 {
		t.Fatalf("len(Faults) = %d, want 4", len(res.Faults))
	}

	if res.Faults[0].Hand != 0 || !errors.Is(res.Faults[0].Err, gesture.ErrMalformedLandmarks) {
		t.Errorf("fault 0 = %+v, want hand 0 ErrMalformedLandmarks", res.Faults[0])
	}
	for _, f := range res.Faults[1:] {
		if !errors.Is(f.Err, ErrClassificationFault) {
			t.Errorf("fault for hand %d = %v, want ErrClassificationFault", f.Hand, f.Err)
		}
	}
}

func TestProcessor_Idempotent(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{
		detector.OpenPalmLandmarks(),
		detector.ThumbsUpLandmarks(),
	})
	p := NewProcessor(&stubModel{dist: sampleDist}, defaultLabels(t))

	run := func() []ClassificationResult {
		frame := testdata.NewFrame(4)
		defer frame.Close()
		res, err := p.Process(frame, det)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		return res.Results
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Label != b.Label || a.Confidence != b.Confidence || *a.Box != *b.Box {
			t.Errorf("result %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestProcessor_NoModel(t *testing.T) {
	frame := testdata.NewFrame(5)
	defer frame.Close()
	before := frame.ToBytes()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	res, err := NewProcessor(nil, defaultLabels(t)).Process(frame, det)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Results) != 0 {
		t.Errorf("Results = %v, want none", res.Results)
	}
	if det.Calls() != 0 {
		t.Errorf("detector was called %d times without a model", det.Calls())
	}
	if !bytes.Equal(before, frame.ToBytes()) {
		t.Error("frame was modified without a model")
	}
}

func TestProcessor_DetectorError(t *testing.T) {
	frame := testdata.NewFrame(6)
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetError(errors.New("service crashed"))

	_, err := NewProcessor(&stubModel{dist: sampleDist}, defaultLabels(t)).Process(frame, det)
	if err == nil {
		t.Fatal("Process() should fail when the detector fails")
	}
}

func TestSummarize(t *testing.T) {
	box := &BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}

	tests := []struct {
		name string
		res  *FrameResult
		want Prediction
	}{
		{
			name: "nil result",
			res:  nil,
			want: Prediction{Status: StatusNoHand},
		},
		{
			name: "hands but none classified",
			res:  &FrameResult{Hands: 1},
			want: Prediction{Status: StatusNoHand, Hands: 1},
		},
		{
			name: "first result wins",
			res: &FrameResult{Hands: 2, Results: []ClassificationResult{
				{Label: "B", Confidence: 0.6, Box: box},
				{Label: "D", Confidence: 0.9},
			}},
			want: Prediction{Status: StatusSuccess, Label: "B", Confidence: 0.6, Hands: 2, Box: box},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.res)
			if *got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func newTestApp(t *testing.T, model classifier.Model, det *detector.MockDetector) *App {
	t.Helper()
	a := New(Config{
		Model:           model,
		Labels:          defaultLabels(t),
		DetectorFactory: func() (detector.Detector, error) { return det, nil },
		PoolSize:        1,
		StreamFPS:       1000,
		FrameTimeout:    time.Second,
	})
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_Classify(t *testing.T) {
	img, err := testdata.JPEG(0)
	if err != nil {
		t.Fatalf("JPEG() error = %v", err)
	}

	t.Run("success", func(t *testing.T) {
		det := detector.NewMockDetector()
		det.SetHands([]detector.HandLandmarks{detector.HandInBox(0.4, 0.3, 0.6, 0.5)})
		a := newTestApp(t, &stubModel{dist: sampleDist}, det)

		pred, err := a.Classify(context.Background(), img)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if pred.Status != StatusSuccess || pred.Label != "C" {
			t.Errorf("Classify() = %+v, want success C", pred)
		}
	})

	t.Run("no hand", func(t *testing.T) {
		a := newTestApp(t, &stubModel{dist: sampleDist}, detector.NewMockDetector())

		pred, err := a.Classify(context.Background(), img)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if pred.Status != StatusNoHand || pred.Label != "" {
			t.Errorf("Classify() = %+v, want no_hand", pred)
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		a := newTestApp(t, &stubModel{dist: sampleDist}, detector.NewMockDetector())

		for _, data := range [][]byte{nil, testdata.Garbage} {
			if _, err := a.Classify(context.Background(), data); !errors.Is(err, ErrDecodeFailure) {
				t.Errorf("Classify(%q) error = %v, want ErrDecodeFailure", data, err)
			}
		}
	})
}

func TestApp_ModelUnavailable(t *testing.T) {
	det := detector.NewMockDetector()
	a := New(Config{
		ModelPath:       filepath.Join(t.TempDir(), "missing.json"),
		DetectorFactory: func() (detector.Detector, error) { return det, nil },
	})
	defer a.Close()

	if _, err := a.ModelInfo(); !errors.Is(err, classifier.ErrModelUnavailable) {
		t.Errorf("ModelInfo() error = %v, want ErrModelUnavailable", err)
	}

	img, _ := testdata.JPEG(1)
	if _, err := a.Classify(context.Background(), img); !errors.Is(err, classifier.ErrModelUnavailable) {
		t.Errorf("Classify() error = %v, want ErrModelUnavailable", err)
	}
	if _, err := a.Classify(context.Background(), testdata.Garbage); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Classify(garbage) error = %v, want ErrDecodeFailure", err)
	}
	if a.Labels().Len() != len(gesture.DefaultLabels) {
		t.Errorf("Labels().Len() = %d, want default table", a.Labels().Len())
	}
}

func TestApp_ExtractSample(t *testing.T) {
	img, _ := testdata.JPEG(2)

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.TruncatedHand(10), detector.OpenPalmLandmarks()})
	a := newTestApp(t, nil, det)

	features, err := a.ExtractSample(context.Background(), img)
	if err != nil {
		t.Fatalf("ExtractSample() error = %v", err)
	}
	if len(features) != gesture.FeatureLength {
		t.Errorf("len(features) = %d, want %d", len(features), gesture.FeatureLength)
	}

	det.SetHands(nil)
	if _, err := a.ExtractSample(context.Background(), img); !errors.Is(err, ErrNoHand) {
		t.Errorf("ExtractSample() error = %v, want ErrNoHand", err)
	}
}

func TestApp_Stream(t *testing.T) {
	frames := testdata.NewSequence(3)
	defer testdata.CloseAll(frames)

	t.Run("runs until the source ends", func(t *testing.T) {
		det := detector.NewMockDetector()
		det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
		a := newTestApp(t, &stubModel{dist: sampleDist}, det)

		cam := capture.NewMockCamera(frames, false)
		cam.Open()
		defer cam.Close()

		var got []*FrameResult
		err := a.Stream(context.Background(), cam, func(frame *gocv.Mat, res *FrameResult) error {
			if frame.Empty() {
				t.Error("sink received an empty frame")
			}
			got = append(got, res)
			return nil
		})
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("sink called %d times, want 3", len(got))
		}
		for _, res := range got {
			if len(res.Results) != 1 || res.Results[0].Label != "C" {
				t.Errorf("frame results = %+v, want one C", res.Results)
			}
		}
		if !det.Closed() {
			t.Error("stream detector was not closed")
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		a := newTestApp(t, &stubModel{dist: sampleDist}, detector.NewMockDetector())
		cam := capture.NewMockCamera(frames, true)
		cam.Open()
		defer cam.Close()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := a.Stream(ctx, cam, func(*gocv.Mat, *FrameResult) error {
			calls++
			if calls == 2 {
				cancel()
			}
			return nil
		})
		if err != nil {
			t.Errorf("Stream() error = %v, want nil on cancel", err)
		}
		if calls != 2 {
			t.Errorf("sink called %d times, want 2", calls)
		}
	})

	t.Run("device failure ends the stream", func(t *testing.T) {
		a := newTestApp(t, &stubModel{dist: sampleDist}, detector.NewMockDetector())
		cam := capture.NewMockCamera(frames, true)
		cam.Open()
		defer cam.Close()
		cam.SetReadError(capture.ErrReadFailed)

		err := a.Stream(context.Background(), cam, func(*gocv.Mat, *FrameResult) error { return nil })
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			t.Errorf("Stream() error = %v, want ErrDeviceUnavailable", err)
		}
	})

	t.Run("a failed detection drops only that frame", func(t *testing.T) {
		det := &flakyDetector{fail: map[int]bool{1: true}}
		a := New(Config{
			Model:           &stubModel{dist: sampleDist},
			DetectorFactory: func() (detector.Detector, error) { return det, nil },
			StreamFPS:       1000,
		})
		defer a.Close()

		cam := capture.NewMockCamera(frames, false)
		cam.Open()
		defer cam.Close()

		calls := 0
		err := a.Stream(context.Background(), cam, func(*gocv.Mat, *FrameResult) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("Stream() error = %v, want nil", err)
		}
		if calls != 2 {
			t.Errorf("sink called %d times, want 2", calls)
		}
	})

	t.Run("repeated detection failures end the stream", func(t *testing.T) {
		boom := errors.New("pipe broken")
		det := detector.NewMockDetector()
		det.SetError(boom)
		a := newTestApp(t, &stubModel{dist: sampleDist}, det)

		cam := capture.NewMockCamera(frames, true)
		cam.Open()
		defer cam.Close()

		err := a.Stream(context.Background(), cam, func(*gocv.Mat, *FrameResult) error {
			t.Error("sink called for a frame that failed detection")
			return nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("Stream() error = %v, want %v", err, boom)
		}
		if det.Calls() != MaxDetectFailures {
			t.Errorf("detector calls = %d, want %d", det.Calls(), MaxDetectFailures)
		}
	})

	t.Run("sink error ends the stream", func(t *testing.T) {
		a := newTestApp(t, &stubModel{dist: sampleDist}, detector.NewMockDetector())
		cam := capture.NewMockCamera(frames, true)
		cam.Open()
		defer cam.Close()

		boom := errors.New("client went away")
		err := a.Stream(context.Background(), cam, func(*gocv.Mat, *FrameResult) error { return boom })
		if !errors.Is(err, boom) {
			t.Errorf("Stream() error = %v, want %v", err, boom)
		}
	})
}

// flakyDetector fails the listed 1-based calls and reports one open palm
// otherwise.
type flakyDetector struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func (d *flakyDetector) Detect(*gocv.Mat) ([]detector.HandLandmarks, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.mu.Unlock()

	if d.fail[call] {
		return nil, errors.New("read response: broken pipe")
	}
	return []detector.HandLandmarks{detector.OpenPalmLandmarks()}, nil
}

func (d *flakyDetector) Close() error { return nil }

// blockingDetector holds every Detect call until release is closed.
type blockingDetector struct {
	release chan struct{}
	closed  chan struct{}
}

func (d *blockingDetector) Detect(*gocv.Mat) ([]detector.HandLandmarks, error) {
	<-d.release
	return nil, nil
}

func (d *blockingDetector) Close() error {
	close(d.closed)
	return nil
}

func TestApp_Stream_FrameTimeout(t *testing.T) {
	frames := testdata.NewSequence(1)
	defer testdata.CloseAll(frames)

	det := &blockingDetector{release: make(chan struct{}), closed: make(chan struct{})}
	a := New(Config{
		Model:           &stubModel{dist: sampleDist},
		DetectorFactory: func() (detector.Detector, error) { return det, nil },
		StreamFPS:       1000,
		FrameTimeout:    20 * time.Millisecond,
	})
	defer a.Close()

	cam := capture.NewMockCamera(frames, true)
	cam.Open()
	defer cam.Close()

	err := a.Stream(context.Background(), cam, func(*gocv.Mat, *FrameResult) error { return nil })
	if !errors.Is(err, ErrFrameTimeout) {
		t.Fatalf("Stream() error = %v, want ErrFrameTimeout", err)
	}

	close(det.release)
	select {
	case <-det.closed:
	case <-time.After(time.Second):
		t.Error("detector was not closed after the stuck frame finished")
	}
}

func TestApp_Uptime(t *testing.T) {
	a := newTestApp(t, nil, detector.NewMockDetector())

	first := a.Uptime()
	time.Sleep(5 * time.Millisecond)
	if second := a.Uptime(); second <= first {
		t.Errorf("Uptime() = %v after %v, want it to grow", second, first)
	}
}
