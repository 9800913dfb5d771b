// Package detection holds per-frame, per-object bounding box detections and resolves which of them
// are real.
package detection

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// CornersPerBox is the number of values describing one box in the flat layout: X0, Y0, X1, Y1.
const CornersPerBox = 4

// BoundingBox is an axis aligned box in pixel coordinates. (X0, Y0) is the top-left corner and
// (X1, Y1) the bottom-right one.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Sentinel marks "no detection" for a (frame, object) pair.
var Sentinel = BoundingBox{X0: 1, Y0: 1, X1: 1, Y1: 2}

// NewBoundingBox builds a box from the four values of the flat layout.
func NewBoundingBox(corners []float64) (BoundingBox, error) {
	if len(corners) != CornersPerBox {
		return BoundingBox{}, errors.Errorf("bounding box needs %d values, got %d", CornersPerBox, len(corners))
	}
	return BoundingBox{X0: corners[0], Y0: corners[1], X1: corners[2], Y1: corners[3]}, nil
}

// IsSentinel is an exact comparison against Sentinel. No tolerance is applied.
func (bb BoundingBox) IsSentinel() bool {
	return bb == Sentinel
}

// Width is X1 - X0.
func (bb BoundingBox) Width() float64 {
	return bb.X1 - bb.X0
}

// Height is Y1 - Y0.
func (bb BoundingBox) Height() float64 {
	return bb.Y1 - bb.Y0
}

// Center of the box.
func (bb BoundingBox) Center() r2.Point {
	return bb.Rect().Center()
}

// Rect returns the box as a golang/geo rectangle. Inverted boxes give an empty rectangle.
func (bb BoundingBox) Rect() r2.Rect {
	return r2.Rect{X: r1.Interval{Lo: bb.X0, Hi: bb.X1}, Y: r1.Interval{Lo: bb.Y0, Hi: bb.Y1}}
}

// Corners returns the box in the flat layout.
func (bb BoundingBox) Corners() []float64 {
	return []float64{bb.X0, bb.Y0, bb.X1, bb.Y1}
}

// IsWellFormed reports whether the box has finite coordinates and a strictly positive extent.
func (bb BoundingBox) IsWellFormed() bool {
	for _, v := range bb.Corners() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return bb.Width() > 0 && bb.Height() > 0
}

func (bb BoundingBox) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", bb.X0, bb.Y0, bb.X1, bb.Y1)
}
