package mask

// descriptorGrid is the side length of the occupancy grid used for shape
// descriptors. The resulting vector is descriptorGrid² + 2 floats: occupancy
// cells, normalized area, and box aspect ratio.
const descriptorGrid = 8

// DescriptorDim is the length of the vector Descriptor returns, and the
// dimension of the pgvector column that stores it.
const DescriptorDim = descriptorGrid*descriptorGrid + 2

// Descriptor computes a fixed-length shape descriptor for the mask: the
// fraction of set pixels in each cell of an 8×8 grid laid over the mask's
// bounding box, plus normalized area and box aspect. Similar silhouettes map
// to nearby vectors, which is enough for duplicate-instance lookup in the
// annotation store.
func (m *Mask) Descriptor() []float32 {
	vec := make([]float32, DescriptorDim)
	box, ok := m.Bounds()
	if !ok {
		return vec
	}

	bw := box.Width()
	bh := box.Height()
	// Each cell covers the half-open pixel range [c·side/grid, (c+1)·side/grid)
	// of the box; boxes narrower than the grid still sample one pixel per
	// cell, so a solid box always yields an all-ones occupancy block.
	for cy := 0; cy < descriptorGrid; cy++ {
		y0 := box.Y0 + cy*bh/descriptorGrid
		y1 := box.Y0 + (cy+1)*bh/descriptorGrid
		if y1 == y0 {
			y1 = y0 + 1
		}
		for cx := 0; cx < descriptorGrid; cx++ {
			x0 := box.X0 + cx*bw/descriptorGrid
			x1 := box.X0 + (cx+1)*bw/descriptorGrid
			if x1 == x0 {
				x1 = x0 + 1
			}
			set, total := 0, 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					total++
					if m.At(x, y) {
						set++
					}
				}
			}
			vec[cy*descriptorGrid+cx] = float32(set) / float32(total)
		}
	}

	vec[descriptorGrid*descriptorGrid] = float32(m.Area()) / float32(m.width*m.height)
	vec[descriptorGrid*descriptorGrid+1] = float32(bw) / float32(bh)
	return vec
}
