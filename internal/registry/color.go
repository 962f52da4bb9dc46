package registry

import (
	"image/color"
	"math"
)

// Color derives the display color for the instance at index out of count.
// Hues are spread evenly over the list, so deleting an instance visibly
// reassigns colors to the ones after it.
func Color(index, count int) color.RGBA {
	if count <= 0 {
		count = 1
	}
	hue := float64(index%count) / float64(count)
	return hsvToRGB(hue, 0.75, 0.95)
}

func hsvToRGB(h, s, v float64) color.RGBA {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: 255,
	}
}
