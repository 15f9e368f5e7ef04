// Package geometry holds the small coordinate types shared by the reframing stages.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is an offset in pixels.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p translated by -q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance is the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Area returns width*height, or 0 for degenerate sizes.
func (s Size) Area() float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return 0
	}
	return s.Width * s.Height
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rectangle dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Center returns the rectangle midpoint.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Translate moves the rectangle by d.
func (r Rect) Translate(d Point) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersect returns the overlapping region of r and o.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.X+r.Width, o.X+o.Width)
	y1 := math.Min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// IoU is the intersection-over-union of two rectangles.
func (r Rect) IoU(o Rect) float64 {
	inter := r.Intersect(o)
	ia := inter.Width * inter.Height
	if ia <= 0 {
		return 0
	}
	union := r.Width*r.Height + o.Width*o.Height - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// AspectRatio is a width:height ratio such as 9:16.
type AspectRatio struct {
	W float64
	H float64
}

// ParseAspectRatio accepts "9:16", "9/16" or a decimal like "0.5625".
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{":", "/", "x"} {
		if parts := strings.Split(s, sep); len(parts) == 2 {
			w, errW := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			h, errH := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errW != nil || errH != nil || w <= 0 || h <= 0 {
				return AspectRatio{}, fmt.Errorf("invalid aspect ratio: %q", s)
			}
			return AspectRatio{W: w, H: h}, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio: %q", s)
	}
	return AspectRatio{W: v, H: 1}, nil
}

// Value returns width divided by height.
func (a AspectRatio) Value() float64 {
	if a.H == 0 {
		return 0
	}
	return a.W / a.H
}

func (a AspectRatio) String() string {
	return strconv.FormatFloat(a.W, 'f', -1, 64) + ":" + strconv.FormatFloat(a.H, 'f', -1, 64)
}

// CropSize returns the largest window with the target ratio that fits inside area.
func CropSize(area Size, ratio AspectRatio) Size {
	r := ratio.Value()
	if r <= 0 || area.Area() == 0 {
		return area
	}
	if area.Width/area.Height > r {
		return Size{Width: math.Round(area.Height * r), Height: area.Height}
	}
	return Size{Width: area.Width, Height: math.Round(area.Width / r)}
}

// Clamp limits v to [lo, hi]. When hi < lo the result is lo.
func Clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
