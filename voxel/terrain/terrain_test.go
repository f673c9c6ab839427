package terrain

import (
	"testing"

	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerlin_Deterministic(t *testing.T) {
	a := NewPerlin(DefaultParams(42))
	b := NewPerlin(DefaultParams(42))

	for x := -20; x < 20; x += 3 {
		for z := -20; z < 20; z += 5 {
			assert.Equal(t, a.Height(x, z), b.Height(x, z))
		}
	}
}

func TestPerlin_ChunksAgreeOnColumns(t *testing.T) {
	g := NewPerlin(DefaultParams(7))
	lower := volume.NewChunk(volume.ChunkCoord{X: 1, Y: 0, Z: -1})
	upper := volume.NewChunk(volume.ChunkCoord{X: 1, Y: 1, Z: -1})
	require.NoError(t, g.Generate(lower))
	require.NoError(t, g.Generate(upper))

	for lx := 0; lx < volume.ChunkSize; lx++ {
		for lz := 0; lz < volume.ChunkSize; lz++ {
			h := g.Height(16+lx, -16+lz)
			for y := 0; y < 2*volume.ChunkSize; y++ {
				var v volume.VoxelType
				if y < volume.ChunkSize {
					v = lower.Get(lx, y, lz)
				} else {
					v = upper.Get(lx, y-volume.ChunkSize, lz)
				}
				assert.Equal(t, y < h, v != volume.Air, "column (%d,%d) y=%d h=%d", lx, lz, y, h)
			}
		}
	}
}

func TestPerlin_HeightRange(t *testing.T) {
	p := DefaultParams(1)
	g := NewPerlin(p)
	for x := 0; x < 64; x++ {
		h := g.Height(x, x*2)
		assert.GreaterOrEqual(t, h, p.BaseHeight-p.Amplitude)
		assert.LessOrEqual(t, h, p.BaseHeight+2*p.Amplitude)
	}
}

func TestFlat(t *testing.T) {
	c := volume.NewChunk(volume.ChunkCoord{})
	require.NoError(t, Flat{Height: 2, Voxel: Stone}.Generate(c))
	assert.Equal(t, 2*volume.ChunkSize*volume.ChunkSize, c.Count())

	above := volume.NewChunk(volume.ChunkCoord{Y: 1})
	require.NoError(t, Flat{Height: 2, Voxel: Stone}.Generate(above))
	assert.Equal(t, 0, above.Count())
}
