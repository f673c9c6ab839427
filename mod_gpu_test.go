package voxstream

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/gekko3d/voxstream/voxel/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInstances(t *testing.T) {
	items := []mesh.RenderItem{
		{Transform: core.Translation(mgl32.Vec3{16, -8, 32}), Progress: 0.5},
		{Transform: core.Translation(mgl32.Vec3{-16, 0, 0}), Progress: 1},
	}

	out := encodeInstances(nil, items)
	require.Len(t, out, 2*instanceSize)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(out[off:])) }
	assert.Equal(t, float32(16), f(0))
	assert.Equal(t, float32(-8), f(4))
	assert.Equal(t, float32(32), f(8))
	assert.Equal(t, float32(0.5), f(12))
	assert.Equal(t, float32(-16), f(16))
	assert.Equal(t, float32(1), f(28))

	assert.Empty(t, encodeInstances(out, nil))
}

func TestInstanceLayoutFollowsVertexLayout(t *testing.T) {
	layout := instanceLayout()
	assert.Equal(t, uint64(instanceSize), layout.ArrayStride)
	require.Len(t, layout.Attributes, 1)
	assert.Equal(t, uint32(4), layout.Attributes[0].ShaderLocation)
}

func TestMatrixBytesIsColumnMajor(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3)
	out := matrixBytes(m)
	require.Len(t, out, 64)

	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:])) }
	assert.Equal(t, float32(1), f(0))
	assert.Equal(t, float32(1), f(12))
	assert.Equal(t, float32(2), f(13))
	assert.Equal(t, float32(3), f(14))
	assert.Equal(t, float32(1), f(15))
}
