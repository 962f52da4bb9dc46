package mask

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// ToImage renders the mask as an 8-bit grayscale image, set pixels white.
// Matches the PNG export the labeling backend produces for masks.
func (m *Mask) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.At(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// EncodePNG writes the mask as a grayscale PNG.
func (m *Mask) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, m.ToImage()); err != nil {
		return fmt.Errorf("failed to encode mask png: %w", err)
	}
	return nil
}

// FromImage builds a mask from any image, treating pixels with luminance
// above 50% as set.
func FromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if c.Y >= 128 {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// FromGrid builds a mask from a row-major grid of 0/1 values, the wire shape
// the segmentation service returns masks in. Rows must all have the same
// length.
func FromGrid(grid [][]int) (*Mask, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrDimensionMismatch)
	}
	height := len(grid)
	width := len(grid[0])
	m := New(width, height)
	for y, row := range grid {
		if len(row) != width {
			return nil, fmt.Errorf("%w: ragged row %d (%d vs %d)", ErrDimensionMismatch, y, len(row), width)
		}
		for x, v := range row {
			if v != 0 {
				m.Set(x, y, true)
			}
		}
	}
	return m, nil
}
