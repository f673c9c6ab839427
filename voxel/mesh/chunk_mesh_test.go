package mesh

import (
	"testing"
	"time"

	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMesh() (*ChunkMesh, *ManualClock) {
	clock := &ManualClock{}
	return NewChunkMesh(0, clock, 500*time.Millisecond), clock
}

func TestChunkMesh_FreshSlot(t *testing.T) {
	m, _ := newTestMesh()

	assert.Equal(t, Unassigned, m.State())
	assert.True(t, m.FinishedAnimation())
	_, ok := m.Chunk()
	assert.False(t, ok)
	_, ok = m.Origin()
	assert.False(t, ok, "nothing to draw before the first assignment")
}

func TestChunkMesh_Lifecycle(t *testing.T) {
	m, clock := newTestMesh()
	coord := volume.ChunkCoord{X: 2, Y: 0, Z: 3}

	require.NoError(t, m.Reassign(coord))
	assert.Equal(t, Reassigned, m.State())
	assert.Equal(t, float32(0), m.Progress())
	assert.False(t, m.Renderable())
	got, ok := m.Chunk()
	require.True(t, ok)
	assert.Equal(t, coord, got)

	clock.Advance(200 * time.Millisecond)
	require.NoError(t, m.Load())
	assert.Equal(t, float32(0), m.Progress(), "progress restarts on every transition")
	assert.True(t, m.Renderable())

	require.NoError(t, m.Unload())
	assert.False(t, m.Renderable())
	_, ok = m.Chunk()
	assert.True(t, ok, "reference is kept until unassigned")

	require.NoError(t, m.Unassign())
	assert.True(t, m.Renderable())
	_, ok = m.Chunk()
	assert.False(t, ok)
	origin, ok := m.Origin()
	require.True(t, ok, "last origin survives for the exit animation")
	assert.Equal(t, coord.Origin(), origin)
}

func TestChunkMesh_RepeatedTransitionKeepsTimer(t *testing.T) {
	m, clock := newTestMesh()
	var changes int
	m.OnStateChange = func(*ChunkMesh, State, State) { changes++ }

	require.NoError(t, m.Reassign(volume.ChunkCoord{}))
	require.NoError(t, m.Load())
	clock.Advance(250 * time.Millisecond)

	require.NoError(t, m.Load())
	assert.InDelta(t, 0.5, m.Progress(), 1e-6)
	assert.Equal(t, 2, changes)
}

func TestChunkMesh_InvalidTransitions(t *testing.T) {
	m, _ := newTestMesh()

	assert.ErrorIs(t, m.Load(), ErrInvalidTransition, "no chunk to load")
	assert.ErrorIs(t, m.Unload(), ErrInvalidTransition)
	assert.Equal(t, Unassigned, m.State())

	require.NoError(t, m.Reassign(volume.ChunkCoord{}))
	require.NoError(t, m.Load())
	assert.ErrorIs(t, m.Reassign(volume.ChunkCoord{X: 1}), ErrInvalidTransition)
	assert.ErrorIs(t, m.Unassign(), ErrInvalidTransition)
	assert.Equal(t, Loaded, m.State())
}

func TestChunkMesh_ProgressClampedAndMonotonic(t *testing.T) {
	m, clock := newTestMesh()
	require.NoError(t, m.Reassign(volume.ChunkCoord{}))

	prev := m.Progress()
	for i := 0; i < 20; i++ {
		clock.Advance(40 * time.Millisecond)
		p := m.Progress()
		assert.GreaterOrEqual(t, p, prev)
		assert.LessOrEqual(t, p, float32(1))
		prev = p
	}
	assert.True(t, m.FinishedAnimation())
}

func TestChunkMesh_Offset(t *testing.T) {
	m, clock := newTestMesh()
	coord := volume.ChunkCoord{X: 1, Y: 0, Z: 0}

	require.NoError(t, m.Reassign(coord))
	require.NoError(t, m.Load())
	assert.Equal(t, float32(-volume.ChunkSize), m.Offset())

	clock.Advance(250 * time.Millisecond)
	assert.InDelta(t, -8, m.Offset(), 1e-4)
	tr, ok := m.Transform()
	require.True(t, ok)
	assert.InDelta(t, -8, tr.Position.Y(), 1e-4)
	assert.Equal(t, float32(16), tr.Position.X())

	clock.Advance(time.Second)
	assert.Equal(t, float32(0), m.Offset())

	require.NoError(t, m.Unload())
	require.NoError(t, m.Unassign())
	assert.Equal(t, float32(0), m.Offset())
	clock.Advance(250 * time.Millisecond)
	assert.InDelta(t, -8, m.Offset(), 1e-4)
	clock.Advance(time.Second)
	assert.Equal(t, float32(-volume.ChunkSize), m.Offset())

	tr, ok = m.Transform()
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{16, -16, 0}, tr.Position)
}
