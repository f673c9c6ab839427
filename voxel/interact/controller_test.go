package interact

import (
	"errors"
	"testing"

	"github.com/gekko3d/voxstream/voxel/raycast"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lock struct{ locked bool }

func (l *lock) IsLocked() bool { return l.locked }

func hitAt(block volume.BlockPos, normal [3]int) *PlayerState {
	return &PlayerState{Hit: &raycast.Hit{Block: block, Normal: normal}, VoxelInHand: 2}
}

// storeWith loads chunk (0,0,0) holding the given voxels.
func storeWith(t *testing.T, voxels map[volume.BlockPos]volume.VoxelType) *volume.Store {
	t.Helper()
	store := volume.NewStore()
	_, err := store.Load(volume.ChunkCoord{}, volume.GeneratorFunc(func(c *volume.Chunk) error {
		for pos, v := range voxels {
			x, y, z := pos.Local()
			c.Set(x, y, z, v)
		}
		return nil
	}))
	require.NoError(t, err)
	return store
}

func voxelAt(t *testing.T, store *volume.Store, pos volume.BlockPos) volume.VoxelType {
	t.Helper()
	v, err := store.GetVoxelAtPosition(pos)
	require.NoError(t, err)
	return v
}

func TestController_HeldPrimaryRepeats(t *testing.T) {
	target := volume.BlockPos{10, 4, 10}
	store := storeWith(t, map[volume.BlockPos]volume.VoxelType{target: 1})
	c := NewController(store, nil)
	player := hitAt(target, [3]int{0, 1, 0})

	c.Press(Primary)
	var editTicks []int
	var edits []Edit
	for tick := 1; tick <= 30; tick++ {
		edit, ok, err := c.Tick(player)
		require.NoError(t, err)
		if ok {
			editTicks = append(editTicks, tick)
			edits = append(edits, edit)
		}
		if tick == 15 {
			assert.Equal(t, volume.Air, voxelAt(t, store, target))
		}
	}
	assert.Equal(t, []int{15, 30}, editTicks)
	require.Len(t, edits, 2)
	assert.Equal(t, Edit{Kind: Primary, Pos: target, Old: 1, New: volume.Air}, edits[0])
	assert.Equal(t, Edit{Kind: Primary, Pos: target, Old: volume.Air, New: volume.Air}, edits[1])
	assert.Equal(t, volume.Air, voxelAt(t, store, target))
}

func TestController_ReleaseStops(t *testing.T) {
	target := volume.BlockPos{1, 1, 1}
	store := storeWith(t, map[volume.BlockPos]volume.VoxelType{target: 1})
	c := NewController(store, nil)
	player := hitAt(target, [3]int{0, 1, 0})

	c.Press(Primary)
	for i := 0; i < 10; i++ {
		c.Tick(player)
	}
	c.Release(Secondary)
	assert.Equal(t, Primary, c.State(), "releasing another button changes nothing")
	c.Release(Primary)
	assert.Equal(t, None, c.State())

	for i := 0; i < 30; i++ {
		_, ok, _ := c.Tick(player)
		assert.False(t, ok)
	}
	assert.Equal(t, volume.VoxelType(1), voxelAt(t, store, target))
}

func TestController_LockedFreezesAndResumes(t *testing.T) {
	target := volume.BlockPos{1, 1, 1}
	store := storeWith(t, map[volume.BlockPos]volume.VoxelType{target: 1})
	l := &lock{}
	c := NewController(store, l)
	player := hitAt(target, [3]int{0, 1, 0})

	c.Press(Primary)
	for i := 0; i < 5; i++ {
		_, ok, err := c.Tick(player)
		require.NoError(t, err)
		require.False(t, ok)
	}

	l.locked = true
	for i := 0; i < 30; i++ {
		_, ok, err := c.Tick(player)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	c.Press(Secondary)
	c.Release(Primary)
	assert.Equal(t, Primary, c.State(), "input ignored while locked")
	assert.Equal(t, volume.VoxelType(1), voxelAt(t, store, target))

	// The countdown paused at 10 remaining ticks.
	l.locked = false
	var editTick int
	for tick := 1; tick <= 10; tick++ {
		_, ok, err := c.Tick(player)
		require.NoError(t, err)
		if ok {
			editTick = tick
		}
	}
	assert.Equal(t, 10, editTick)
	assert.Equal(t, volume.Air, voxelAt(t, store, target))
}

func TestController_NoHitNoEdit(t *testing.T) {
	store := storeWith(t, nil)
	c := NewController(store, nil)
	c.TicksPerInteraction = 1

	c.Press(Primary)
	_, ok, err := c.Tick(&PlayerState{})
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.Tick(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func loadedStore(t *testing.T) *volume.Store {
	t.Helper()
	store := volume.NewStore()
	_, err := store.Load(volume.ChunkCoord{}, volume.GeneratorFunc(func(c *volume.Chunk) error {
		c.Set(4, 4, 4, 1)
		c.Set(4, 5, 4, 3)
		return nil
	}))
	require.NoError(t, err)
	return store
}

func TestController_PlaceOnlyIntoAir(t *testing.T) {
	store := loadedStore(t)
	c := NewController(store, nil)
	c.TicksPerInteraction = 1

	// Top face of (4,4,4) is covered by (4,5,4).
	c.Press(Secondary)
	_, ok, err := c.Tick(hitAt(volume.BlockPos{4, 4, 4}, [3]int{0, 1, 0}))
	require.NoError(t, err)
	assert.False(t, ok)
	v, _ := store.GetVoxelAtPosition(volume.BlockPos{4, 5, 4})
	assert.Equal(t, volume.VoxelType(3), v)

	edit, ok, err := c.Tick(hitAt(volume.BlockPos{4, 4, 4}, [3]int{1, 0, 0}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Edit{Kind: Secondary, Pos: volume.BlockPos{5, 4, 4}, Old: volume.Air, New: 2}, edit)
	v, _ = store.GetVoxelAtPosition(volume.BlockPos{5, 4, 4})
	assert.Equal(t, volume.VoxelType(2), v)
}

func TestController_BreakTwice(t *testing.T) {
	store := loadedStore(t)
	c := NewController(store, nil)
	c.TicksPerInteraction = 1

	c.Press(Primary)
	edit, ok, err := c.Tick(hitAt(volume.BlockPos{4, 4, 4}, [3]int{0, 1, 0}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, volume.VoxelType(1), edit.Old)

	edit, ok, err = c.Tick(hitAt(volume.BlockPos{4, 4, 4}, [3]int{0, 1, 0}))
	require.NoError(t, err)
	require.True(t, ok, "breaking air still counts")
	assert.Equal(t, volume.Air, edit.Old)
	assert.Equal(t, volume.Air, edit.New)
}

func TestController_UnloadedChunkIsNoop(t *testing.T) {
	store := loadedStore(t)
	c := NewController(store, nil)
	c.TicksPerInteraction = 1

	c.Press(Secondary)
	_, ok, err := c.Tick(hitAt(volume.BlockPos{15, 4, 4}, [3]int{1, 0, 0}))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, errors.Is(err, volume.ErrNoSuchChunk))
}
