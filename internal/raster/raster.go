package raster

import (
	"math"

	"github.com/bdougie/maskedit/internal/mask"
)

// Point is a position in source-image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is the ordered points of one continuous pointer-down interval plus
// the brush radius in source pixels.
type Stroke struct {
	Points []Point
	Radius int
}

// Transform maps display coordinates to source-image pixels. Scale is the
// display-size / source-size factor the view layer renders at.
type Transform struct {
	Scale float64
}

// ToSource converts a display-space point to source pixel space.
func (t Transform) ToSource(p Point) Point {
	s := t.Scale
	if s <= 0 {
		s = 1
	}
	return Point{X: p.X / s, Y: p.Y / s}
}

// clamp limits v to [0, max-1].
func clamp(v float64, max int) float64 {
	if v < 0 {
		return 0
	}
	if v > float64(max-1) {
		return float64(max - 1)
	}
	return v
}

// Rasterize turns a stroke into a binary footprint with the target image's
// exact dimensions. Each consecutive point pair fills a capsule of width
// 2·radius and every point additionally fills a disc of radius r, so sharp
// turns stay covered and a single click still yields a dab. Points are
// clipped to image bounds first.
func Rasterize(s Stroke, width, height int) *mask.Mask {
	m := mask.New(width, height)
	if len(s.Points) == 0 || width <= 0 || height <= 0 {
		return m
	}
	r := float64(s.Radius)
	if r < 0 {
		r = 0
	}

	clipped := make([]Point, len(s.Points))
	for i, p := range s.Points {
		clipped[i] = Point{X: clamp(p.X, width), Y: clamp(p.Y, height)}
	}

	for _, p := range clipped {
		fillDisc(m, p, r)
	}
	for i := 1; i < len(clipped); i++ {
		fillCapsule(m, clipped[i-1], clipped[i], r)
	}
	return m
}

func fillDisc(m *mask.Mask, c Point, r float64) {
	x0 := int(math.Floor(c.X - r))
	x1 := int(math.Ceil(c.X + r))
	y0 := int(math.Floor(c.Y - r))
	y1 := int(math.Ceil(c.Y + r))
	r2 := r * r
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) - c.X
			dy := float64(y) - c.Y
			if dx*dx+dy*dy <= r2 {
				m.Set(x, y, true)
			}
		}
	}
}

// fillCapsule sets every pixel within distance r of the segment a-b.
func fillCapsule(m *mask.Mask, a, b Point, r float64) {
	x0 := int(math.Floor(math.Min(a.X, b.X) - r))
	x1 := int(math.Ceil(math.Max(a.X, b.X) + r))
	y0 := int(math.Floor(math.Min(a.Y, b.Y) - r))
	y1 := int(math.Ceil(math.Max(a.Y, b.Y) + r))
	r2 := r * r
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if segmentDist2(float64(x), float64(y), a, b) <= r2 {
				m.Set(x, y, true)
			}
		}
	}
}

// segmentDist2 returns the squared distance from (px, py) to segment a-b.
func segmentDist2(px, py float64, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	wx, wy := px-a.X, py-a.Y
	seg2 := vx*vx + vy*vy
	if seg2 == 0 {
		return wx*wx + wy*wy
	}
	t := (wx*vx + wy*vy) / seg2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx := px - (a.X + t*vx)
	dy := py - (a.Y + t*vy)
	return dx*dx + dy*dy
}
