package voxstream

import (
	"math"
	"testing"

	"github.com/gekko3d/voxstream/voxel/interact"
	"github.com/gekko3d/voxstream/voxel/mesh"
	"github.com/gekko3d/voxstream/voxel/terrain"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type worldFixture struct {
	app    *App
	camera EntityId
	clock  *mesh.ManualClock
}

func newWorldApp(t *testing.T, streaming ChunkStreamingModule, modules ...Module) *worldFixture {
	t.Helper()
	clock := &mesh.ManualClock{}
	if streaming.Generator == nil {
		streaming.Generator = terrain.Flat{Height: 4, Voxel: terrain.Stone}
	}
	streaming.Pool.Clock = clock

	all := append([]Module{
		TimeModule{Manual: true},
		InputModule{},
		streaming,
	}, modules...)
	app := NewAppBuilder().UseModule(all...).Build()
	t.Cleanup(app.Close)

	cam := NewCameraComponent()
	cam.Position = mgl32.Vec3{8.5, 10.5, 8.5}
	cam.Pitch = -math.Pi / 2
	id := app.Commands().AddEntity(cam, NewPlayerComponent(terrain.Dirt))
	app.FlushCommands()

	return &worldFixture{app: app, camera: id, clock: clock}
}

func (f *worldFixture) moveCamera(pos mgl32.Vec3) {
	MakeQuery1[CameraComponent](f.app.Commands()).Map(func(eid EntityId, cam *CameraComponent) bool {
		cam.Position = pos
		return true
	})
}

func (f *worldFixture) player() *PlayerComponent {
	var p *PlayerComponent
	MakeQuery1[PlayerComponent](f.app.Commands()).Map(func(eid EntityId, pc *PlayerComponent) bool {
		p = pc
		return false
	})
	return p
}

func mustResource[T any](t *testing.T, app *App) *T {
	t.Helper()
	r, ok := Resource[T](app)
	require.True(t, ok)
	return r
}

func TestChunkStreaming_LoadsAndMeshesAroundCamera(t *testing.T) {
	f := newWorldApp(t, ChunkStreamingModule{ViewRadius: 1, LoadBudget: 100})
	f.app.Step()

	store := mustResource[volume.Store](t, f.app)
	streaming := mustResource[ChunkStreaming](t, f.app)
	pool := mustResource[mesh.Pool](t, f.app)

	assert.Equal(t, 9, store.Len())
	require.Len(t, streaming.Visible, 9)
	assert.Equal(t, volume.ChunkCoord{}, streaming.Visible[0])
	for _, c := range streaming.Visible {
		m, ok := pool.MeshFor(c)
		require.True(t, ok, "chunk %v", c)
		assert.Equal(t, mesh.Loaded, m.State())
	}
}

func TestChunkStreaming_FollowsCamera(t *testing.T) {
	f := newWorldApp(t, ChunkStreamingModule{ViewRadius: 1, LoadBudget: 100})
	f.app.Step()

	f.moveCamera(mgl32.Vec3{3*volume.ChunkSize + 8, 10, 8})
	f.app.Step()

	store := mustResource[volume.Store](t, f.app)
	streaming := mustResource[ChunkStreaming](t, f.app)
	pool := mustResource[mesh.Pool](t, f.app)

	assert.Equal(t, volume.ChunkCoord{X: 3}, streaming.Center)
	assert.False(t, store.IsLoaded(volume.ChunkCoord{X: 0}))
	assert.True(t, store.IsLoaded(volume.ChunkCoord{X: 1}), "kept within radius+1")
	assert.Equal(t, 12, store.Len())
	assert.Len(t, streaming.Visible, 9)

	_, ok := pool.MeshFor(volume.ChunkCoord{X: 0})
	assert.False(t, ok)
	m, ok := pool.MeshFor(volume.ChunkCoord{X: 3})
	require.True(t, ok)
	assert.Equal(t, mesh.Loaded, m.State())
}

func TestChunkStreaming_LoadBudgetNearestFirst(t *testing.T) {
	f := newWorldApp(t, ChunkStreamingModule{ViewRadius: 1, LoadBudget: 2})
	f.app.Step()

	store := mustResource[volume.Store](t, f.app)
	assert.Equal(t, []volume.ChunkCoord{{X: -1}, {}}, store.Loaded())

	for i := 0; i < 4; i++ {
		f.app.Step()
	}
	assert.Equal(t, 9, store.Len())
}

func TestChunkStreaming_NoCameraNoWork(t *testing.T) {
	app := NewAppBuilder().UseModule(
		TimeModule{Manual: true},
		ChunkStreamingModule{ViewRadius: 1, Generator: terrain.Flat{Height: 4, Voxel: terrain.Stone}},
	).Build()
	defer app.Close()
	app.Step()

	store := mustResource[volume.Store](t, app)
	streaming := mustResource[ChunkStreaming](t, app)
	assert.Zero(t, store.Len())
	assert.Empty(t, streaming.Visible)
}

func TestChunkStreaming_BreakAndPlace(t *testing.T) {
	f := newWorldApp(t,
		ChunkStreamingModule{ViewRadius: 1, LoadBudget: 100},
		InteractionModule{TicksPerInteraction: 2},
	)
	input := mustResource[Input](t, f.app)
	store := mustResource[volume.Store](t, f.app)
	settings := mustResource[Interaction](t, f.app)
	target := volume.BlockPos{8, 3, 8}

	f.app.Step()
	p := f.player()
	require.NotNil(t, p.State.Hit)
	assert.Equal(t, target, p.State.Hit.Block)
	require.NotNil(t, p.Controller)

	input.Hold(MouseButtonLeft)
	f.app.Step()
	assert.Equal(t, interact.Primary, p.Controller.State())
	assert.Empty(t, settings.Edits)

	f.app.Step()
	require.Len(t, settings.Edits, 1)
	assert.Equal(t, interact.Edit{Kind: interact.Primary, Pos: target, Old: terrain.Stone, New: volume.Air}, settings.Edits[0])
	v, err := store.GetVoxelAtPosition(target)
	require.NoError(t, err)
	assert.Equal(t, volume.Air, v)
	assert.Equal(t, volume.BlockPos{8, 2, 8}, p.State.Hit.Block)

	input.Let(MouseButtonLeft)
	f.app.Step()
	assert.Equal(t, interact.None, p.Controller.State())

	input.Hold(MouseButtonRight)
	input.Hold(Key2)
	f.app.Step()
	assert.Equal(t, terrain.Dirt, p.State.VoxelInHand)
	f.app.Step()

	v, err = store.GetVoxelAtPosition(target)
	require.NoError(t, err)
	assert.Equal(t, terrain.Dirt, v)
	assert.Equal(t, uint64(2), settings.Applied)
}

func TestChunkStreaming_LockBlocksEdits(t *testing.T) {
	f := newWorldApp(t,
		ChunkStreamingModule{ViewRadius: 1, LoadBudget: 100},
		InteractionModule{TicksPerInteraction: 1},
	)
	input := mustResource[Input](t, f.app)
	lock := mustResource[InputLock](t, f.app)
	settings := mustResource[Interaction](t, f.app)

	f.app.Step()
	input.Hold(KeyEscape)
	f.app.Step()
	require.True(t, lock.Locked)

	input.Let(KeyEscape)
	input.Hold(MouseButtonLeft)
	for i := 0; i < 5; i++ {
		f.app.Step()
	}
	assert.Zero(t, settings.Applied)
	assert.Equal(t, interact.None, f.player().Controller.State())
}

func TestSortByDistance_NearestThenCoordinate(t *testing.T) {
	center := volume.ChunkCoord{X: 1}
	coords := []volume.ChunkCoord{{X: 3}, {X: 1, Z: 1}, {X: 1, Z: -1}, {X: 1}, {X: 2}, {}}
	sortByDistance(coords, center)
	assert.Equal(t, []volume.ChunkCoord{
		{X: 1},
		{},
		{X: 1, Z: -1},
		{X: 1, Z: 1},
		{X: 2},
		{X: 3},
	}, coords)
}
