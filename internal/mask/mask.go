package mask

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when two masks (or a mask and its target
// image) do not share the same width and height.
var ErrDimensionMismatch = errors.New("mask dimensions do not match")

// Mask is a binary H×W raster matching a target image or frame. Cells are
// strictly 0/1; any visual softness is render-only and never stored here.
type Mask struct {
	width  int
	height int
	bits   []uint64
}

// New creates an all-zero mask of the given dimensions.
func New(width, height int) *Mask {
	if width <= 0 || height <= 0 {
		return &Mask{}
	}
	words := (width*height + 63) / 64
	return &Mask{
		width:  width,
		height: height,
		bits:   make([]uint64, words),
	}
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// At reports whether the pixel at (x, y) is set. Out-of-bounds reads
// return false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	idx := y*m.width + x
	return m.bits[idx/64]&(1<<(idx%64)) != 0
}

// Set writes the pixel at (x, y). Out-of-bounds writes are ignored.
func (m *Mask) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	idx := y*m.width + x
	if on {
		m.bits[idx/64] |= 1 << (idx % 64)
	} else {
		m.bits[idx/64] &^= 1 << (idx % 64)
	}
}

// Clone returns an independent deep copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{width: m.width, height: m.height}
	c.bits = make([]uint64, len(m.bits))
	copy(c.bits, m.bits)
	return c
}

// SameSize reports whether o has the same dimensions as m.
func (m *Mask) SameSize(o *Mask) bool {
	return o != nil && m.width == o.width && m.height == o.height
}

// Or sets m to the union of m and o.
func (m *Mask) Or(o *Mask) error {
	if !m.SameSize(o) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, m.width, m.height, o.width, o.height)
	}
	for i := range m.bits {
		m.bits[i] |= o.bits[i]
	}
	return nil
}

// AndNot clears every pixel of m that is set in o.
func (m *Mask) AndNot(o *Mask) error {
	if !m.SameSize(o) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, m.width, m.height, o.width, o.height)
	}
	for i := range m.bits {
		m.bits[i] &^= o.bits[i]
	}
	return nil
}

// Empty reports whether no pixel is set. An all-zero mask is invalid as
// instance data and must be removed from the registry, never retained.
func (m *Mask) Empty() bool {
	for _, w := range m.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// Area returns the number of set pixels.
func (m *Mask) Area() int {
	area := 0
	for _, w := range m.bits {
		for ; w != 0; w &= w - 1 {
			area++
		}
	}
	return area
}

// Equal reports whether both masks have identical dimensions and pixels.
func (m *Mask) Equal(o *Mask) bool {
	if !m.SameSize(o) {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// Bounds returns the minimal rectangle covering all set pixels. ok is false
// for an empty mask.
func (m *Mask) Bounds() (r Rect, ok bool) {
	minX, minY := m.width, m.height
	maxX, maxY := -1, -1
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if !m.At(x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return Rect{}, false
	}
	return Rect{X0: minX, Y0: minY, X1: maxX, Y1: maxY}, true
}

// Rect is an inclusive pixel-space bounding rectangle.
type Rect struct {
	X0, Y0 int
	X1, Y1 int
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int { return r.X1 - r.X0 + 1 }

// Height returns the rectangle height in pixels.
func (r Rect) Height() int { return r.Y1 - r.Y0 + 1 }

// Contains reports whether (x, y) falls inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X0, r.Y0, r.X1, r.Y1)
}
