package fractal

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidViewport is returned for viewports that cannot be rendered.
var ErrInvalidViewport = errors.New("invalid viewport")

// Viewport describes one render: the region of the complex plane before
// zoom, the zoom factor, the target pixel size and the iteration bound.
// It is a value; pan and zoom return a new Viewport instead of mutating.
type Viewport struct {
	MinX, MaxX    float64
	MinY, MaxY    float64
	Zoom          float64
	Width         int
	Height        int
	MaxIterations int
}

// DefaultViewport is the whole set at 800x600 with 1000 iterations.
func DefaultViewport() Viewport {
	return Viewport{
		MinX:          -2.5,
		MaxX:          1.5,
		MinY:          -1.5,
		MaxY:          1.5,
		Zoom:          1.0,
		Width:         800,
		Height:        600,
		MaxIterations: 1000,
	}
}

// Validate rejects non-positive dimensions, inverted or non-finite bounds
// and non-positive zoom. Nothing is clamped.
func (v Viewport) Validate() error {
	switch {
	case v.Width <= 0 || v.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidViewport, v.Width, v.Height)
	case v.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations %d", ErrInvalidViewport, v.MaxIterations)
	case !finite(v.MinX, v.MaxX, v.MinY, v.MaxY, v.Zoom):
		return fmt.Errorf("%w: non-finite bounds or zoom", ErrInvalidViewport)
	case v.Zoom <= 0:
		return fmt.Errorf("%w: zoom %v", ErrInvalidViewport, v.Zoom)
	case v.MaxX <= v.MinX:
		return fmt.Errorf("%w: x bounds [%v, %v]", ErrInvalidViewport, v.MinX, v.MaxX)
	case v.MaxY <= v.MinY:
		return fmt.Errorf("%w: y bounds [%v, %v]", ErrInvalidViewport, v.MinY, v.MaxY)
	}
	return nil
}

// RangeX is the width of the visible plane after zoom.
func (v Viewport) RangeX() float64 {
	return (v.MaxX - v.MinX) / v.Zoom
}

// RangeY is the height of the visible plane after zoom.
func (v Viewport) RangeY() float64 {
	return (v.MaxY - v.MinY) / v.Zoom
}

// Point maps a pixel to its plane coordinate. Zoom is anchored at (MinX, MinY).
func (v Viewport) Point(col, row int) (x0, y0 float64) {
	x0 = v.MinX + float64(col)*v.RangeX()/float64(v.Width)
	y0 = v.MinY + float64(row)*v.RangeY()/float64(v.Height)
	return x0, y0
}

// Pan shifts the view by fx and fy fractions of the visible range.
func (v Viewport) Pan(fx, fy float64) Viewport {
	dx := fx * v.RangeX()
	dy := fy * v.RangeY()
	v.MinX += dx
	v.MaxX += dx
	v.MinY += dy
	v.MaxY += dy
	return v
}

// Scale multiplies the zoom factor.
func (v Viewport) Scale(factor float64) Viewport {
	v.Zoom *= factor
	return v
}

// Resize changes the pixel dimensions and keeps the plane region.
func (v Viewport) Resize(width, height int) Viewport {
	v.Width = width
	v.Height = height
	return v
}

func finite(vs ...float64) bool {
	for _, f := range vs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
