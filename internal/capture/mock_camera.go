package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
	openErr error
	readErr error
	opens   int
	closes  int
}

func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.index = 0
	c.opens++
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.closes++
	}
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.readErr != nil {
		return nil, c.readErr
	}

	if len(c.frames) == 0 {
		return nil, errors.New("no frames available")
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrEndOfStream
		}
		c.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return DefaultFPS }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetOpenError makes subsequent Open calls fail.
func (c *MockCamera) SetOpenError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// SetReadError makes subsequent ReadFrame calls fail.
func (c *MockCamera) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// Opens reports how often the camera was opened.
func (c *MockCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Closes reports how often an open camera was closed.
func (c *MockCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
