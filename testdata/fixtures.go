// Package testdata builds synthetic frames and images for tests.
package testdata

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Frame dimensions matching the default camera resolution.
const (
	Width  = 640
	Height = 480
)

// NewFrame returns a Width x Height BGR frame filled with a flat color that
// varies with seed, so consecutive frames differ.
func NewFrame(seed int) *gocv.Mat {
	v := float64(40 + (seed*37)%180)
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v/2, 255-v, 0), Height, Width, gocv.MatTypeCV8UC3)
	return &mat
}

// NewSequence returns n distinct frames. The caller closes them, for example
// with CloseAll.
func NewSequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		frames[i] = NewFrame(i)
	}
	return frames
}

// CloseAll closes every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// JPEG returns the JPEG encoding of a synthetic frame.
func JPEG(seed int) ([]byte, error) {
	frame := NewFrame(seed)
	defer frame.Close()

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", seed, err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close frees.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Garbage is a byte blob that no image decoder accepts.
var Garbage = []byte("definitely not an image \x00\x01\x02")
