package volume

const apronSize = ChunkSize + 2

// Snapshot is a copy of one chunk plus a one voxel apron taken from its
// neighbours. Apron cells of unloaded neighbours read as air.
type Snapshot struct {
	Coord   ChunkCoord
	Version uint64

	voxels [apronSize * apronSize * apronSize]VoxelType
}

// At returns the voxel at a chunk-local position; each axis may range from
// -1 to ChunkSize inclusive.
func (s *Snapshot) At(x, y, z int) VoxelType {
	return s.voxels[apronIndex(x, y, z)]
}

func (s *Snapshot) set(x, y, z int, v VoxelType) {
	s.voxels[apronIndex(x, y, z)] = v
}

func apronIndex(x, y, z int) int {
	return (x + 1) + (y+1)*apronSize + (z+1)*apronSize*apronSize
}

// axisSpan maps a neighbour direction on one axis to the snapshot range it
// fills and the first local index to read from the neighbour.
func axisSpan(d int) (from, to, src int) {
	switch d {
	case -1:
		return -1, -1, ChunkSize - 1
	case 1:
		return ChunkSize, ChunkSize, 0
	}
	return 0, ChunkSize - 1, 0
}

func (s *Snapshot) copyFrom(c *Chunk, dx, dy, dz int) {
	x0, x1, sx := axisSpan(dx)
	y0, y1, sy := axisSpan(dy)
	z0, z1, sz := axisSpan(dz)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if dx == 0 && dy == 0 && dz == 0 {
		s.Version = c.version
	}
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				s.set(x, y, z, c.get(sx+x-x0, sy+y-y0, sz+z-z0))
			}
		}
	}
}
