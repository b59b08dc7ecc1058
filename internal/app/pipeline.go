package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"gocv.io/x/gocv"
	"golang.org/x/time/rate"
)

// MaxReadFailures is how many consecutive failed reads end a stream.
const MaxReadFailures = 3

// MaxDetectFailures is how many consecutive frames may fail detection before
// the stream ends. A single failure only drops that frame.
const MaxDetectFailures = 3

// FrameSink receives each processed frame. The frame is only valid for the
// duration of the call. Returning an error stops the stream.
type FrameSink func(frame *gocv.Mat, res *FrameResult) error

type frameOutcome struct {
	res *FrameResult
	err error
}

// Stream is the capture loop behind the live video feed:
//  1. Pace reads at the configured frame rate
//  2. Read a frame from the camera
//  3. Detect, classify and annotate it with a detector owned by this stream
//  4. Hand the annotated frame to sink
//
// It returns nil when ctx is cancelled or the source ends. A frame whose
// detection fails is dropped; the stream ends with an error when the device
// or the detector keeps failing, a frame overruns the per-frame budget, or
// the sink fails. The caller owns the camera; Stream only reads from it.
func (a *App) Stream(ctx context.Context, cam capture.Camera, sink FrameSink) error {
	det, err := a.newStreamDet()
	if err != nil {
		return fmt.Errorf("create stream detector: %w", err)
	}

	stranded := false
	defer func() {
		if stranded {
			return
		}
		if err := det.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(a.streamFPS), 1)
	failures, detectFailures := 0, 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails once ctx is done; that is a normal disconnect.
			return nil
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				return nil
			}
			failures++
			if failures >= MaxReadFailures {
				return fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}
		failures = 0

		out, ok := a.processTimed(frame, det)
		if !ok {
			stranded = true
			return ErrFrameTimeout
		}
		if out.err != nil {
			frame.Close()
			detectFailures++
			if detectFailures >= MaxDetectFailures {
				return out.err
			}
			log.Printf("Dropping frame: %v", out.err)
			continue
		}
		detectFailures = 0

		err = sink(frame, out.res)
		frame.Close()
		if err != nil {
			return err
		}
	}
}

// processTimed bounds one frame by the per-frame budget. On timeout the
// frame and detector are handed to a goroutine that closes them once the
// stuck call returns, and ok is false.
func (a *App) processTimed(frame *gocv.Mat, det detector.Detector) (frameOutcome, bool) {
	done := make(chan frameOutcome, 1)
	go func() {
		res, err := a.processor.Process(frame, det)
		done <- frameOutcome{res: res, err: err}
	}()

	timer := time.NewTimer(a.frameTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out, true
	case <-timer.C:
		log.Printf("Frame processing exceeded %s, stopping stream", a.frameTimeout)
		go func() {
			<-done
			frame.Close()
			det.Close()
		}()
		return frameOutcome{}, false
	}
}
