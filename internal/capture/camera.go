// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrReadFailed is returned when the device did not deliver a frame.
	ErrReadFailed = errors.New("failed to read frame from camera")

	// ErrEndOfStream is returned when a finite source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device or video source using GoCV.
type cameraImpl struct {
	source  string
	width   int
	height  int
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a new Camera for the given source. A numeric source
// ("0", "1") selects a local device; anything else is passed to OpenCV as a
// file path or stream URL.
func NewCamera(source string) Camera {
	return &cameraImpl{
		source: source,
		width:  DefaultWidth,
		height: DefaultHeight,
		fps:    DefaultFPS,
	}
}

// deviceArg converts the configured source into the value OpenCV expects.
func (c *cameraImpl) deviceArg() interface{} {
	if id, err := strconv.Atoi(c.source); err == nil {
		return id
	}
	return c.source
}

// isDevice reports whether the source is a local capture device.
func (c *cameraImpl) isDevice() bool {
	_, ok := c.deviceArg().(int)
	return ok
}

// readError classifies a failed read. Files and stream URLs that stop
// delivering frames have ended; a device that does so has failed.
func (c *cameraImpl) readError() error {
	if c.isDevice() {
		return ErrReadFailed
	}
	return ErrEndOfStream
}

// Open opens the camera for capturing frames.
// It sets the resolution to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceArg())
	if err != nil {
		return fmt.Errorf("open video source %q: %w", c.source, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, c.readError()
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
