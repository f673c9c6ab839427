package terrain

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/gekko3d/voxstream/voxel/volume"
)

// Block ids from volume.DefaultRegistry.
const (
	Stone volume.VoxelType = 1
	Dirt  volume.VoxelType = 2
	Grass volume.VoxelType = 3
	Sand  volume.VoxelType = 4
)

type Params struct {
	Seed       int64
	Alpha      float64 // noise smoothing
	Beta       float64 // noise frequency
	Octaves    int32
	Scale      float64 // world units to noise units
	BaseHeight int
	Amplitude  int
	SandLevel  int // columns at or below this height are sand
	DirtDepth  int
}

func DefaultParams(seed int64) Params {
	return Params{
		Seed:       seed,
		Alpha:      2,
		Beta:       2,
		Octaves:    3,
		Scale:      0.03,
		BaseHeight: 8,
		Amplitude:  12,
		SandLevel:  5,
		DirtDepth:  3,
	}
}

// Perlin is a heightmap generator. Each column's height comes from 2D
// Perlin noise, so neighbouring chunks line up.
type Perlin struct {
	Params
	noise *perlin.Perlin
}

func NewPerlin(p Params) *Perlin {
	return &Perlin{
		Params: p,
		noise:  perlin.NewPerlin(p.Alpha, p.Beta, p.Octaves, p.Seed),
	}
}

// Height returns the surface height of world column (x, z). Voxels with
// y < Height are solid.
func (g *Perlin) Height(x, z int) int {
	n := g.noise.Noise2D(float64(x)*g.Scale, float64(z)*g.Scale)
	// Noise2D is roughly in [-1, 1].
	n = (n + 1) / 2
	return g.BaseHeight + int(math.Round(n*float64(g.Amplitude)))
}

func (g *Perlin) Generate(c *volume.Chunk) error {
	origin := c.Coord().Origin()
	ox, oy, oz := int(origin.X()), int(origin.Y()), int(origin.Z())

	var heights [volume.ChunkSize][volume.ChunkSize]int
	for lx := 0; lx < volume.ChunkSize; lx++ {
		for lz := 0; lz < volume.ChunkSize; lz++ {
			heights[lx][lz] = g.Height(ox+lx, oz+lz)
		}
	}

	c.Fill(func(lx, ly, lz int) volume.VoxelType {
		return g.column(heights[lx][lz], oy+ly)
	})
	return nil
}

func (g *Perlin) column(height, y int) volume.VoxelType {
	switch {
	case y >= height:
		return volume.Air
	case height <= g.SandLevel:
		return Sand
	case y == height-1:
		return Grass
	case y >= height-1-g.DirtDepth:
		return Dirt
	}
	return Stone
}

// Flat fills every voxel below Height with Voxel.
type Flat struct {
	Height int
	Voxel  volume.VoxelType
}

func (f Flat) Generate(c *volume.Chunk) error {
	oy := int(c.Coord().Origin().Y())
	if oy >= f.Height {
		return nil
	}
	c.Fill(func(lx, ly, lz int) volume.VoxelType {
		if oy+ly < f.Height {
			return f.Voxel
		}
		return volume.Air
	})
	return nil
}
