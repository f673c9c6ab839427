package volume

import (
	"fmt"
	"math"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ChunkCoord identifies a chunk in chunk space.
type ChunkCoord struct {
	X, Y, Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

func (c ChunkCoord) Array() [3]int {
	return [3]int{c.X, c.Y, c.Z}
}

// Origin is the world-space position of the chunk's minimum corner.
func (c ChunkCoord) Origin() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(c.X * ChunkSize),
		float32(c.Y * ChunkSize),
		float32(c.Z * ChunkSize),
	}
}

func (c ChunkCoord) Bounds() core.AABB {
	o := c.Origin()
	return core.AABB{Min: o, Max: o.Add(mgl32.Vec3{ChunkSize, ChunkSize, ChunkSize})}
}

func (c ChunkCoord) Add(dx, dy, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// BlockPos is a world voxel coordinate.
type BlockPos [3]int

func BlockPosOf(p mgl32.Vec3) BlockPos {
	return BlockPos{
		int(math.Floor(float64(p.X()))),
		int(math.Floor(float64(p.Y()))),
		int(math.Floor(float64(p.Z()))),
	}
}

func (p BlockPos) Add(d [3]int) BlockPos {
	return BlockPos{p[0] + d[0], p[1] + d[1], p[2] + d[2]}
}

func (p BlockPos) Chunk() ChunkCoord {
	return ChunkCoord{
		X: floorDiv(p[0], ChunkSize),
		Y: floorDiv(p[1], ChunkSize),
		Z: floorDiv(p[2], ChunkSize),
	}
}

// Local returns the position inside the owning chunk.
func (p BlockPos) Local() (int, int, int) {
	return mod(p[0], ChunkSize), mod(p[1], ChunkSize), mod(p[2], ChunkSize)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
