package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/maskedit/internal/mask"
	"github.com/bdougie/maskedit/internal/raster"
)

func rectMask(w, h int, x0, y0, x1, y1 int) *mask.Mask {
	m := mask.New(w, h)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func singleInstanceRegistry(t *testing.T, w, h int, m *mask.Mask) *Registry {
	t.Helper()
	reg := New(w, h)
	in, err := NewInstance(m, "thing")
	require.NoError(t, err)
	require.NoError(t, reg.Append(in))
	return reg
}

func TestApplyCreateAppendsInstance(t *testing.T) {
	reg := New(32, 32)
	fp := raster.Rasterize(raster.Stroke{Points: []raster.Point{{X: 5, Y: 5}}, Radius: 2}, 32, 32)

	next, sel, err := Apply(reg, SelectNew(), OpCreate, fp)
	require.NoError(t, err)
	require.Equal(t, 1, next.Len())

	in, err := next.Get(0)
	require.NoError(t, err)
	assert.True(t, in.Mask.Equal(fp))
	assert.Equal(t, mask.Rect{X0: 3, Y0: 3, X1: 7, Y1: 7}, in.Box)
	assert.Equal(t, 1.0, in.Score)
	assert.True(t, sel.IsNew())

	// Input registry untouched.
	assert.Equal(t, 0, reg.Len())
}

func TestApplyCreateRequiresNewSelection(t *testing.T) {
	reg := New(16, 16)
	fp := rectMask(16, 16, 1, 1, 3, 3)

	_, _, err := Apply(reg, NoSelection(), OpCreate, fp)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, _, err = Apply(reg, Select(0), OpCreate, fp)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestApplyAddIsSupersetAndTight(t *testing.T) {
	base := rectMask(32, 32, 10, 10, 14, 14)
	reg := singleInstanceRegistry(t, 32, 32, base.Clone())
	fp := rectMask(32, 32, 13, 13, 20, 20)

	next, sel, err := Apply(reg, Select(0), OpAdd, fp)
	require.NoError(t, err)
	require.Equal(t, 1, next.Len())

	in, err := next.Get(0)
	require.NoError(t, err)
	// Result is a superset of prior mask and footprint.
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if base.At(x, y) || fp.At(x, y) {
				assert.True(t, in.Mask.At(x, y), "pixel (%d,%d)", x, y)
			}
		}
	}
	assert.Equal(t, mask.Rect{X0: 10, Y0: 10, X1: 20, Y1: 20}, in.Box)
	assert.Equal(t, 1.0, in.Score, "manual edit resets score")
	idx, ok := sel.Index()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestApplyAddAlreadyCoveredIsNoChange(t *testing.T) {
	base := rectMask(8, 8, 0, 0, 2, 2)
	reg := singleInstanceRegistry(t, 8, 8, base.Clone())

	// Brush dab at (1,1) r=1 is already inside the mask.
	fp := raster.Rasterize(raster.Stroke{Points: []raster.Point{{X: 1, Y: 1}}, Radius: 1}, 8, 8)
	next, _, err := Apply(reg, Select(0), OpAdd, fp)
	require.NoError(t, err)

	in, err := next.Get(0)
	require.NoError(t, err)
	assert.True(t, in.Mask.Equal(base))
	assert.Equal(t, mask.Rect{X0: 0, Y0: 0, X1: 2, Y1: 2}, in.Box)
}

func TestApplyRemoveShrinksAndRecomputesBox(t *testing.T) {
	base := rectMask(16, 16, 2, 2, 9, 9)
	reg := singleInstanceRegistry(t, 16, 16, base)
	fp := rectMask(16, 16, 6, 0, 15, 15)

	next, _, err := Apply(reg, Select(0), OpRemove, fp)
	require.NoError(t, err)

	in, err := next.Get(0)
	require.NoError(t, err)
	assert.Equal(t, mask.Rect{X0: 2, Y0: 2, X1: 5, Y1: 9}, in.Box)
	assert.False(t, in.Mask.At(6, 6))
	assert.True(t, in.Mask.At(5, 6))
}

func TestApplyRemoveFullCoverDeletesInstance(t *testing.T) {
	base := rectMask(8, 8, 0, 0, 2, 2)
	reg := singleInstanceRegistry(t, 8, 8, base)
	fp := rectMask(8, 8, 0, 0, 7, 7)

	next, sel, err := Apply(reg, Select(0), OpRemove, fp)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Len(), "fully erased instance is deleted, never kept empty")
	assert.True(t, sel.IsNone())
}

func TestApplySelectionErrors(t *testing.T) {
	reg := singleInstanceRegistry(t, 8, 8, rectMask(8, 8, 0, 0, 2, 2))
	fp := rectMask(8, 8, 0, 0, 1, 1)

	_, _, err := Apply(reg, NoSelection(), OpAdd, fp)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, _, err = Apply(reg, SelectNew(), OpRemove, fp)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	// Stale index after a concurrent deletion.
	_, _, err = Apply(reg, Select(5), OpAdd, fp)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = Apply(reg, Select(-1), OpRemove, fp)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyRejectsWrongFootprintSize(t *testing.T) {
	reg := singleInstanceRegistry(t, 8, 8, rectMask(8, 8, 0, 0, 2, 2))
	fp := rectMask(9, 8, 0, 0, 1, 1)

	_, _, err := Apply(reg, Select(0), OpAdd, fp)
	assert.ErrorIs(t, err, mask.ErrDimensionMismatch)
	// Registry unchanged after rejection.
	assert.Equal(t, 1, reg.Len())
}

func TestSelectionAfterDelete(t *testing.T) {
	assert.True(t, Select(2).AfterDelete(2).IsNone())

	adjusted := Select(3).AfterDelete(1)
	idx, ok := adjusted.Index()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	same := Select(1).AfterDelete(3)
	idx, ok = same.Index()
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	assert.True(t, NoSelection().AfterDelete(0).IsNone())
	assert.True(t, SelectNew().AfterDelete(0).IsNew())
}

func TestRegistryDeleteShifts(t *testing.T) {
	reg := New(8, 8)
	for i := 0; i < 3; i++ {
		in, err := NewInstance(rectMask(8, 8, i, i, i+1, i+1), "")
		require.NoError(t, err)
		require.NoError(t, reg.Append(in))
	}
	require.NoError(t, reg.DeleteAt(1))
	require.Equal(t, 2, reg.Len())

	in, err := reg.Get(1)
	require.NoError(t, err)
	assert.Equal(t, mask.Rect{X0: 2, Y0: 2, X1: 3, Y1: 3}, in.Box)
}

func TestRegistryRejectsEmptyAndMissized(t *testing.T) {
	reg := New(8, 8)
	err := reg.Append(Instance{Mask: mask.New(8, 8), Box: mask.Rect{}})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	err = reg.Append(Instance{Mask: rectMask(4, 4, 0, 0, 1, 1)})
	assert.ErrorIs(t, err, mask.ErrDimensionMismatch)
}

func TestCloneEquality(t *testing.T) {
	reg := singleInstanceRegistry(t, 8, 8, rectMask(8, 8, 1, 1, 4, 4))
	c := reg.Clone()
	assert.True(t, reg.Equal(c))

	in, err := c.Get(0)
	require.NoError(t, err)
	in.Mask.Set(7, 7, true)
	assert.False(t, reg.Equal(c), "clone must not share mask storage")
}

func TestColorStableForIndex(t *testing.T) {
	a := Color(0, 4)
	b := Color(1, 4)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Color(0, 4))
	assert.EqualValues(t, 255, a.A)
}
