package app

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/mudra/internal/detector"
	"gocv.io/x/gocv"
)

var (
	boneColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	jointColor = color.RGBA{R: 255, A: 255}
	boxColor   = color.RGBA{G: 255, A: 255}
)

const (
	boxThickness = 2
	textScale    = 0.9
	textOffset   = 10
)

func pixel(p detector.Point3D, width, height int) image.Point {
	return image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
}

// drawSkeleton draws the hand connections and joints. Connections that
// reference missing points are skipped.
func drawSkeleton(frame *gocv.Mat, hand *detector.HandLandmarks, width, height int) {
	n := len(hand.Points)
	for _, c := range detector.HandConnections {
		if c[0] >= n || c[1] >= n {
			continue
		}
		gocv.Line(frame, pixel(hand.Points[c[0]], width, height), pixel(hand.Points[c[1]], width, height), boneColor, 2)
	}
	for _, p := range hand.Points {
		gocv.Circle(frame, pixel(p, width, height), 4, jointColor, -1)
	}
}

// drawResult draws the bounding box and "<label> (<confidence>)" above it.
func drawResult(frame *gocv.Mat, r ClassificationResult) {
	if r.Box == nil {
		return
	}
	gocv.Rectangle(frame, r.Box.Rect(), boxColor, boxThickness)

	text := fmt.Sprintf("%s (%.2f)", r.Label, r.Confidence)
	origin := image.Pt(r.Box.X1, r.Box.Y1-textOffset)
	gocv.PutText(frame, text, origin, gocv.FontHersheySimplex, textScale, boxColor, boxThickness)
}
