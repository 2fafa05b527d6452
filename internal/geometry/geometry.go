// Package geometry maps sub-map rectangles and isometric grid cells into the
// composite map's rendering space.
//
// Rendering space follows the viewer's simple CRS: X grows to the right
// (longitude) and Y grows upward (latitude). A sub-map's position is its
// lower-left corner.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// CellHalfHeight is the vertical step for one unit of gridX+gridY.
	CellHalfHeight = 16
	// CellHalfWidth is the horizontal step for one unit of gridX-gridY.
	CellHalfWidth = 32
)

// Padding is trimmed from each edge of a sub-map before grid math.
type Padding struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Frame is the geometric part of a sub-map configuration.
type Frame struct {
	Position orb.Point
	Width    float64
	Height   float64
	Padding  Padding
	Columns  int
	Rows     int
}

// ComputeBounds returns the rendering-space rectangle covered by the frame.
func ComputeBounds(f Frame) orb.Bound {
	return orb.Bound{
		Min: f.Position,
		Max: orb.Point{f.Position.X() + f.Width, f.Position.Y() + f.Height},
	}
}

// Inner returns the padded interior of the frame.
func Inner(f Frame) orb.Bound {
	x := f.Position.X() + f.Padding.Left
	y := f.Position.Y() + f.Padding.Bottom
	w := f.Width - f.Padding.Left - f.Padding.Right
	h := f.Height - f.Padding.Top - f.Padding.Bottom
	return orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + w, y + h}}
}

// Origin is the rendering point of grid cell (0,0): the center of the
// top-most tile of the diamond.
func Origin(f Frame) orb.Point {
	inner := Inner(f)
	return orb.Point{
		inner.Min.X() + float64(f.Rows)*CellHalfWidth,
		inner.Max.Y() - CellHalfHeight,
	}
}

// CellToPoint converts a grid cell into a rendering-space point. Cells outside
// [0,Columns)x[0,Rows) are not clamped.
func CellToPoint(f Frame, gridX, gridY int) orb.Point {
	o := Origin(f)
	return orb.Point{
		o.X() + float64(gridX-gridY)*CellHalfWidth,
		o.Y() - float64(gridX+gridY)*CellHalfHeight,
	}
}

// CenterCell is the default cell for annotations without explicit grid
// coordinates.
func CenterCell(f Frame) (int, int) {
	return f.Columns / 2, f.Rows / 2
}

// BaseSize is the un-padded canvas size of a columns x rows isometric map.
func BaseSize(columns, rows int) (width, height float64) {
	n := float64(columns + rows)
	return n * CellHalfWidth, n * CellHalfHeight
}

// Accumulate folds rects into one enclosing rectangle. The result always
// contains the unit rectangle (0,0)-(1,1), so an empty input is still a
// usable viewport.
func Accumulate(rects ...orb.Bound) orb.Bound {
	out := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	for _, r := range rects {
		out = out.Union(r)
	}
	return out
}

// FitZoom returns the largest integer zoom in [minZoom,maxZoom] at which b
// fits a viewport of the given pixel size. At zoom z one rendering unit spans
// 2^z pixels.
func FitZoom(b orb.Bound, viewportW, viewportH int, minZoom, maxZoom float64) float64 {
	w := b.Max.X() - b.Min.X()
	h := b.Max.Y() - b.Min.Y()
	if w <= 0 || h <= 0 || viewportW <= 0 || viewportH <= 0 {
		return maxZoom
	}

	scale := math.Min(float64(viewportW)/w, float64(viewportH)/h)
	z := math.Floor(math.Log2(scale))
	return ClampZoom(z, minZoom, maxZoom)
}

// ClampZoom bounds z to [minZoom,maxZoom].
func ClampZoom(z, minZoom, maxZoom float64) float64 {
	if z < minZoom {
		return minZoom
	}
	if z > maxZoom {
		return maxZoom
	}
	return z
}
