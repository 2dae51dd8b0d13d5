// Package images - Frame geometry and depth map utilities
package images

import "github.com/chewxy/math32"

// Rect is a bounding box in pixel coordinates of the source frame.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// NewRect builds a Rect from a detector's [x1, y1, x2, y2] slice.
//
// Arguments:
//   - xyxy: Four pixel coordinates. Any other length yields the zero Rect.
//
// Returns:
//   - Rect: The bounding box.
func NewRect(xyxy []float32) Rect {
	if len(xyxy) != 4 {
		return Rect{}
	}
	return Rect{X1: xyxy[0], Y1: xyxy[1], X2: xyxy[2], Y2: xyxy[3]}
}

// Width is X2-X1. It is negative for an inverted box.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height is Y2-Y1. It is negative for an inverted box.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the box area, or 0 when the box is degenerate.
func (r Rect) Area() float32 {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Empty reports whether the box has no positive extent on either axis.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Center returns the midpoint of the box.
func (r Rect) Center() (cx, cy float32) {
	return (r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2
}

// Slice returns the box as [x1, y1, x2, y2].
func (r Rect) Slice() []float32 {
	return []float32{r.X1, r.Y1, r.X2, r.Y2}
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// The intersection corner is the maximum of both top-left corners and the
// minimum of both bottom-right corners. When the resulting width or height is
// not positive the boxes do not overlap and the score is 0. The union follows
// inclusion-exclusion:
//
//	Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
