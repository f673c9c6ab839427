package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var floor = volume.GeneratorFunc(func(c *volume.Chunk) error {
	if c.Coord().Y != 0 {
		return nil
	}
	c.Fill(func(lx, ly, lz int) volume.VoxelType {
		if ly == 0 {
			return 1
		}
		return volume.Air
	})
	return nil
})

func newTestStore(t *testing.T, coords ...volume.ChunkCoord) *volume.Store {
	t.Helper()
	store := volume.NewStore()
	for _, c := range coords {
		_, err := store.Load(c, floor)
		require.NoError(t, err)
	}
	return store
}

func newTestPool(store *volume.Store, cfg PoolConfig) (*Pool, *ManualClock) {
	clock := &ManualClock{}
	cfg.Clock = clock
	return NewPool(store, cfg), clock
}

func TestPool_AssignsVisibleLoadedChunks(t *testing.T) {
	a := volume.ChunkCoord{X: 0, Y: 0, Z: 0}
	b := volume.ChunkCoord{X: 1, Y: 0, Z: 0}
	missing := volume.ChunkCoord{X: 9, Y: 0, Z: 9}
	store := newTestStore(t, a, b)
	pool, clock := newTestPool(store, PoolConfig{})
	defer pool.Close()

	errs := pool.Update([]volume.ChunkCoord{a, b, missing})
	require.Empty(t, errs)

	for _, c := range []volume.ChunkCoord{a, b} {
		m, ok := pool.MeshFor(c)
		require.True(t, ok, "chunk %v", c)
		assert.Equal(t, Loaded, m.State())
		assert.NotZero(t, m.Front().Len())
	}
	_, ok := pool.MeshFor(missing)
	assert.False(t, ok, "unloaded chunks get no slot")
	assert.Len(t, pool.Slots(), 2)

	clock.Advance(time.Second)
	items := pool.Renderables()
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, it.Chunk.Origin(), it.Transform.Position)
		assert.Equal(t, float32(1), it.Progress)
	}
}

func TestPool_ReassignTransitionOrder(t *testing.T) {
	first := volume.ChunkCoord{X: 2, Y: 0, Z: 3}
	second := volume.ChunkCoord{X: 5, Y: 0, Z: 1}
	store := newTestStore(t, first, second)

	var seen []State
	var reassignProgress []float32
	pool, clock := newTestPool(store, PoolConfig{
		MaxSlots: 1,
		OnStateChange: func(m *ChunkMesh, _, to State) {
			seen = append(seen, to)
			if to == Reassigned {
				reassignProgress = append(reassignProgress, m.Progress())
			}
		},
	})
	defer pool.Close()

	require.Empty(t, pool.Update([]volume.ChunkCoord{first}))
	require.Equal(t, []State{Reassigned, Loaded}, seen)
	clock.Advance(100 * time.Millisecond)

	seen = nil
	require.Empty(t, pool.Update([]volume.ChunkCoord{second}))
	assert.Equal(t, []State{Unloaded, Unassigned, Reassigned, Loaded}, seen)
	assert.Equal(t, []float32{0, 0}, reassignProgress, "animation restarts on every reassignment")

	m, ok := pool.MeshFor(second)
	require.True(t, ok)
	assert.Equal(t, 0, m.ID(), "the only slot was stolen mid-animation")
	_, ok = pool.MeshFor(first)
	assert.False(t, ok)
}

func TestPool_ExitFadeThenDiscard(t *testing.T) {
	a := volume.ChunkCoord{}
	store := newTestStore(t, a)
	pool, clock := newTestPool(store, PoolConfig{MaxSlots: 4})
	defer pool.Close()

	require.Empty(t, pool.Update([]volume.ChunkCoord{a}))
	clock.Advance(time.Second)

	require.True(t, store.Unload(a))
	require.Empty(t, pool.Update([]volume.ChunkCoord{a}))
	_, ok := pool.MeshFor(a)
	assert.False(t, ok)

	items := pool.Renderables()
	require.Len(t, items, 1, "fading slot still draws")
	assert.Equal(t, Unassigned, items[0].State)
	assert.Equal(t, a.Origin(), items[0].Transform.Position)

	clock.Advance(time.Second)
	pool.Update(nil)
	assert.Empty(t, pool.Renderables())
}

func TestPool_ExhaustedLeavesChunkUnshown(t *testing.T) {
	a := volume.ChunkCoord{}
	b := volume.ChunkCoord{X: 1}
	store := newTestStore(t, a, b)
	pool, _ := newTestPool(store, PoolConfig{MaxSlots: 1})
	defer pool.Close()

	require.Empty(t, pool.Update([]volume.ChunkCoord{a, b}))
	_, ok := pool.MeshFor(a)
	assert.True(t, ok)
	_, ok = pool.MeshFor(b)
	assert.False(t, ok)
}

func TestPool_MalformedChunkKeepsStateAndRetries(t *testing.T) {
	coord := volume.ChunkCoord{}
	store := volume.NewStore()
	_, err := store.Load(coord, volume.GeneratorFunc(func(c *volume.Chunk) error {
		c.Set(3, 3, 3, 99)
		return nil
	}))
	require.NoError(t, err)

	pool, _ := newTestPool(store, PoolConfig{RetryDelay: 2})
	defer pool.Close()

	errs := pool.Update([]volume.ChunkCoord{coord})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedChunk)
	m, _ := pool.MeshFor(coord)
	assert.Equal(t, Reassigned, m.State())
	assert.True(t, pool.Busy())

	assert.Empty(t, pool.Update([]volume.ChunkCoord{coord}), "waiting out the retry delay")
	errs = pool.Update([]volume.ChunkCoord{coord})
	require.Len(t, errs, 1, "retried and failed again")
	assert.Equal(t, Reassigned, m.State())

	require.NoError(t, store.SetVoxelAtPosition(1, volume.BlockPos{3, 3, 3}))
	assert.Empty(t, pool.Update([]volume.ChunkCoord{coord}))
	assert.Equal(t, Loaded, m.State())
	assert.False(t, pool.Busy())
}

type editingMesher struct {
	inner Mesher
	edit  func()
	calls int
}

func (e *editingMesher) Mesh(ctx context.Context, snap *volume.Snapshot, dst *Buffer) error {
	e.calls++
	if e.calls == 1 {
		e.edit()
	}
	return e.inner.Mesh(ctx, snap, dst)
}

func TestPool_StaleResultIsRequeued(t *testing.T) {
	coord := volume.ChunkCoord{}
	store := newTestStore(t, coord)
	mesher := &editingMesher{
		inner: NewFaceMesher(volume.DefaultRegistry()),
		edit: func() {
			require.NoError(t, store.SetVoxelAtPosition(2, volume.BlockPos{4, 5, 6}))
		},
	}

	pool, _ := newTestPool(store, PoolConfig{Mesher: mesher})
	defer pool.Close()

	require.Empty(t, pool.Update([]volume.ChunkCoord{coord}))
	assert.Equal(t, 2, mesher.calls)
	m, _ := pool.MeshFor(coord)
	assert.Equal(t, Loaded, m.State())

	var found bool
	for _, v := range m.Front().Vertices() {
		if v.Voxel == 2 {
			found = true
			break
		}
	}
	assert.True(t, found, "published mesh includes the edit")
}

func TestPool_EditRegeneratesOnlyTouchedChunks(t *testing.T) {
	registry := prometheus.NewRegistry()
	a := volume.ChunkCoord{}
	b := volume.ChunkCoord{X: 1}
	far := volume.ChunkCoord{X: 4}
	store := newTestStore(t, a, b, far)
	pool, _ := newTestPool(store, PoolConfig{Registerer: registry})
	defer pool.Close()

	visible := []volume.ChunkCoord{a, b, far}
	require.Empty(t, pool.Update(visible))
	start := gatherValue(t, registry, "voxstream_mesh_pool_regenerations_total", "")

	require.NoError(t, store.SetVoxelAtPosition(volume.Air, volume.BlockPos{15, 0, 8}))
	require.Empty(t, pool.Update(visible))
	got := gatherValue(t, registry, "voxstream_mesh_pool_regenerations_total", "")
	assert.Equal(t, start+2, got, "edited chunk and its +X neighbour")
}

func TestPool_MetricsRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	coord := volume.ChunkCoord{}
	store := newTestStore(t, coord)
	pool, _ := newTestPool(store, PoolConfig{Registerer: registry})
	defer pool.Close()

	require.Empty(t, pool.Update([]volume.ChunkCoord{coord}))

	assert.Equal(t, float64(1), gatherValue(t, registry, "voxstream_mesh_pool_slots", "LOADED"))
}

func TestPool_Workers(t *testing.T) {
	coords := []volume.ChunkCoord{{}, {X: 1}, {Z: 1}, {X: 1, Z: 1}}
	store := newTestStore(t, coords...)
	pool, _ := newTestPool(store, PoolConfig{Workers: 2})
	defer pool.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.Empty(t, pool.Update(coords))
		if !pool.Busy() {
			break
		}
		require.True(t, time.Now().Before(deadline), "workers did not finish")
		time.Sleep(5 * time.Millisecond)
	}

	for _, c := range coords {
		m, ok := pool.MeshFor(c)
		require.True(t, ok)
		assert.Equal(t, Loaded, m.State())
	}
}

// gatedMesher holds meshing of one chunk until the gate opens and ignores
// cancellation, so its result arrives after the slot has moved on.
type gatedMesher struct {
	inner   Mesher
	held    volume.ChunkCoord
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedMesher) Mesh(ctx context.Context, snap *volume.Snapshot, dst *Buffer) error {
	if snap.Coord == g.held {
		close(g.started)
		<-g.gate
	}
	return g.inner.Mesh(context.Background(), snap, dst)
}

func TestPool_LateResultIsDiscardedAfterReassign(t *testing.T) {
	registry := prometheus.NewRegistry()
	a := volume.ChunkCoord{}
	b := volume.ChunkCoord{X: 3}
	store := volume.NewStore()
	for c, id := range map[volume.ChunkCoord]volume.VoxelType{a: 1, b: 3} {
		_, err := store.Load(c, volume.GeneratorFunc(func(ch *volume.Chunk) error {
			ch.Set(8, 0, 8, id)
			return nil
		}))
		require.NoError(t, err)
	}

	mesher := &gatedMesher{
		inner:   NewFaceMesher(volume.DefaultRegistry()),
		held:    a,
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	pool, _ := newTestPool(store, PoolConfig{MaxSlots: 1, Workers: 1, Mesher: mesher, Registerer: registry})
	defer pool.Close()

	require.Empty(t, pool.Update([]volume.ChunkCoord{a}))
	select {
	case <-mesher.started:
	case <-time.After(5 * time.Second):
		t.Fatal("meshing of the first chunk never started")
	}

	require.Empty(t, pool.Update([]volume.ChunkCoord{b}))
	m, ok := pool.MeshFor(b)
	require.True(t, ok)
	assert.Equal(t, Reassigned, m.State())
	close(mesher.gate)

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.Empty(t, pool.Update([]volume.ChunkCoord{b}))
		if !pool.Busy() {
			break
		}
		require.True(t, time.Now().Before(deadline), "workers did not finish")
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, Loaded, m.State())
	coord, ok := m.Chunk()
	require.True(t, ok)
	assert.Equal(t, b, coord)
	require.NotZero(t, m.Front().Len())
	for _, v := range m.Front().Vertices() {
		assert.Equal(t, uint32(3), v.Voxel)
	}
	assert.Equal(t, float64(1), gatherValue(t, registry, "voxstream_mesh_pool_discarded_total", ""))
}

// gatherValue reads one sample from the registry. state selects a label
// value for the slots gauge; counters pass "".
func gatherValue(t *testing.T, registry *prometheus.Registry, name, state string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if state == "" {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetName() == "state" && l.GetValue() == state {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{state=%q} not found", name, state)
	return 0
}
