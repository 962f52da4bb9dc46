package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/maskedit/internal/mask"
)

func TestSinglePointYieldsDisc(t *testing.T) {
	fp := Rasterize(Stroke{Points: []Point{{X: 5, Y: 5}}, Radius: 2}, 20, 20)

	box, ok := fp.Bounds()
	require.True(t, ok)
	assert.Equal(t, mask.Rect{X0: 3, Y0: 3, X1: 7, Y1: 7}, box)

	// Disc membership: center and axis extremes in, corners out.
	assert.True(t, fp.At(5, 5))
	assert.True(t, fp.At(3, 5))
	assert.True(t, fp.At(5, 7))
	assert.False(t, fp.At(3, 3))
	assert.False(t, fp.At(7, 7))
}

func TestCapsuleCoversSegment(t *testing.T) {
	fp := Rasterize(Stroke{Points: []Point{{X: 2, Y: 10}, {X: 17, Y: 10}}, Radius: 2}, 20, 20)

	// Every pixel on the segment and within radius above/below is set.
	for x := 2; x <= 17; x++ {
		assert.True(t, fp.At(x, 10), "x=%d on segment", x)
		assert.True(t, fp.At(x, 8), "x=%d above", x)
		assert.True(t, fp.At(x, 12), "x=%d below", x)
	}
	assert.False(t, fp.At(10, 7))
	assert.False(t, fp.At(10, 13))
}

func TestSharpTurnStaysCovered(t *testing.T) {
	stroke := Stroke{
		Points: []Point{{X: 4, Y: 4}, {X: 14, Y: 4}, {X: 4, Y: 5}},
		Radius: 2,
	}
	fp := Rasterize(stroke, 20, 20)
	// The disc at the turn point keeps the corner solid.
	assert.True(t, fp.At(14, 4))
	assert.True(t, fp.At(16, 4))
	assert.True(t, fp.At(14, 6))
}

func TestPointsClippedToBounds(t *testing.T) {
	fp := Rasterize(Stroke{Points: []Point{{X: -10, Y: -10}, {X: 100, Y: 100}}, Radius: 1}, 10, 10)
	// Clipped endpoints land on the corners; the capsule runs the diagonal.
	assert.True(t, fp.At(0, 0))
	assert.True(t, fp.At(9, 9))
	assert.True(t, fp.At(5, 5))
	assert.False(t, fp.At(0, 9))
}

func TestEmptyStroke(t *testing.T) {
	fp := Rasterize(Stroke{Radius: 3}, 10, 10)
	assert.True(t, fp.Empty())
}

func TestTransformToSource(t *testing.T) {
	tr := Transform{Scale: 2}
	p := tr.ToSource(Point{X: 10, Y: 6})
	assert.Equal(t, Point{X: 5, Y: 3}, p)

	// Unset scale behaves as identity.
	assert.Equal(t, Point{X: 10, Y: 6}, Transform{}.ToSource(Point{X: 10, Y: 6}))
}

func TestCaptureLifecycle(t *testing.T) {
	c := NewCapture(Transform{Scale: 2})
	assert.False(t, c.Active())

	c.Begin(ToolBrush, 3, Point{X: 10, Y: 10})
	require.True(t, c.Active())
	c.Move(Point{X: 12, Y: 10})
	c.Move(Point{X: 14, Y: 10})

	stroke, tool, ok := c.End()
	require.True(t, ok)
	assert.Equal(t, ToolBrush, tool)
	assert.False(t, c.Active())
	require.Len(t, stroke.Points, 3)
	assert.Equal(t, Point{X: 5, Y: 5}, stroke.Points[0])
	assert.Equal(t, Point{X: 7, Y: 5}, stroke.Points[2])
	assert.Equal(t, 3, stroke.Radius)

	// Ending again is a no-op.
	_, _, ok = c.End()
	assert.False(t, ok)
}

func TestCaptureCancelDiscards(t *testing.T) {
	c := NewCapture(Transform{Scale: 1})
	c.Begin(ToolEraser, 2, Point{X: 1, Y: 1})
	c.Move(Point{X: 2, Y: 2})
	c.Cancel()

	assert.False(t, c.Active())
	_, _, ok := c.End()
	assert.False(t, ok, "cancelled stroke must not finalize")

	// Moves after cancel are ignored.
	c.Move(Point{X: 3, Y: 3})
	_, _, ok = c.End()
	assert.False(t, ok)
}
