package voxstream

import (
	"cmp"
	"slices"

	"github.com/gekko3d/voxstream/voxel/gpu"
	"github.com/gekko3d/voxstream/voxel/mesh"
	"github.com/gekko3d/voxstream/voxel/spatial"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultLoadBudget = 8

// ChunkStreaming is the per-frame streaming state: the chunk the camera is
// in, the view area around it and the visible chunks handed to the pool.
type ChunkStreaming struct {
	Generator      volume.Generator
	ViewRadius     int
	VerticalRadius int
	LoadBudget     int

	Center  volume.ChunkCoord
	View    spatial.Area
	Visible []volume.ChunkCoord
	hasView bool
}

// ChunkStreamingModule keeps chunks around the camera loaded and meshed.
// Install it after GpuModule so meshes bind to the GPU binder.
type ChunkStreamingModule struct {
	Generator      volume.Generator
	Registry       *volume.Registry
	ViewRadius     int
	VerticalRadius int
	LoadBudget     int
	Pool           mesh.PoolConfig
	Registerer     prometheus.Registerer
}

func (m ChunkStreamingModule) Install(app *App, cmd *Commands) {
	reg := m.Registry
	if reg == nil {
		reg = volume.DefaultRegistry()
	}
	budget := m.LoadBudget
	if budget <= 0 {
		budget = DefaultLoadBudget
	}

	store := volume.NewStore()
	cfg := m.Pool
	if cfg.Logger == nil {
		cfg.Logger = app.Logger()
	}
	if cfg.Mesher == nil {
		cfg.Mesher = mesh.NewFaceMesher(reg)
	}
	if cfg.Binder == nil {
		if binder, ok := Resource[gpu.BufferBinder](app); ok {
			cfg.Binder = binder
		}
	}
	if cfg.Registerer == nil {
		cfg.Registerer = m.Registerer
	}
	pool := mesh.NewPool(store, cfg)
	app.OnClose(pool.Close)

	cmd.AddResources(store, reg, pool, &ChunkStreaming{
		Generator:      m.Generator,
		ViewRadius:     m.ViewRadius,
		VerticalRadius: m.VerticalRadius,
		LoadBudget:     budget,
	})

	app.UseSystem(
		System(ChunkLoadSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
	app.UseSystem(
		System(ChunkMeshSystem).
			InStage(PostUpdate).
			RunAlways(),
	)
}

func cameraPosition(cmd *Commands) (mgl32.Vec3, bool) {
	var pos mgl32.Vec3
	found := false
	MakeQuery1[CameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent) bool {
		pos = cam.Position
		found = true
		return false
	})
	return pos, found
}

func chunkDistance(a, b volume.ChunkCoord) int {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return dx*dx + dy*dy + dz*dz
}

// sortByDistance orders coords nearest first, ties by coordinate.
func sortByDistance(coords []volume.ChunkCoord, center volume.ChunkCoord) {
	slices.SortFunc(coords, func(a, b volume.ChunkCoord) int {
		return cmp.Or(
			cmp.Compare(chunkDistance(a, center), chunkDistance(b, center)),
			volume.CompareCoords(a, b),
		)
	})
}

// ChunkLoadSystem recenters the view on the camera, unloads chunks outside
// the view radius plus one and loads up to LoadBudget missing chunks,
// nearest first.
func ChunkLoadSystem(cmd *Commands, streaming *ChunkStreaming, store *volume.Store) {
	pos, ok := cameraPosition(cmd)
	if !ok {
		return
	}
	center := volume.BlockPosOf(pos).Chunk()
	streaming.Center = center
	streaming.View = spatial.AreaAround(center.Array(), streaming.ViewRadius, streaming.VerticalRadius)
	streaming.hasView = true

	keep := spatial.AreaAround(center.Array(), streaming.ViewRadius+1, streaming.VerticalRadius+1)
	for _, coord := range store.Loaded() {
		if !keep.Contains(coord.Array()) {
			store.Unload(coord)
		}
	}

	if streaming.Generator == nil {
		return
	}
	var missing []volume.ChunkCoord
	v := streaming.View
	for x := v.Min[0]; x <= v.Max[0]; x++ {
		for y := v.Min[1]; y <= v.Max[1]; y++ {
			for z := v.Min[2]; z <= v.Max[2]; z++ {
				c := volume.ChunkCoord{X: x, Y: y, Z: z}
				if !store.IsLoaded(c) {
					missing = append(missing, c)
				}
			}
		}
	}
	sortByDistance(missing, center)
	if len(missing) > streaming.LoadBudget {
		missing = missing[:streaming.LoadBudget]
	}
	for _, c := range missing {
		if _, err := store.Load(c, streaming.Generator); err != nil {
			cmd.Logger().Errorf("load chunk %v: %v", c, err)
		}
	}
}

// visibleChunks asks the store's bounds index for loaded chunks overlapping
// the view and keeps those whose coordinate is inside it.
func visibleChunks(store *volume.Store, view spatial.Area, center volume.ChunkCoord) []volume.ChunkCoord {
	lo := volume.ChunkCoord{X: view.Min[0], Y: view.Min[1], Z: view.Min[2]}.Origin()
	hi := volume.ChunkCoord{X: view.Max[0] + 1, Y: view.Max[1] + 1, Z: view.Max[2] + 1}.Origin()
	query := spatial.Box{Min: lo, Max: hi}

	var visible []volume.ChunkCoord
	for _, coord := range store.Bounds().QueryPairs(query) {
		if view.Contains(coord.Array()) && !slices.Contains(visible, coord) {
			visible = append(visible, coord)
		}
	}
	sortByDistance(visible, center)
	return visible
}

// ChunkMeshSystem hands the visible chunks to the mesh pool.
func ChunkMeshSystem(cmd *Commands, streaming *ChunkStreaming, store *volume.Store, pool *mesh.Pool) {
	if streaming.hasView {
		streaming.Visible = visibleChunks(store, streaming.View, streaming.Center)
	} else {
		streaming.Visible = nil
	}
	for _, err := range pool.Update(streaming.Visible) {
		cmd.Logger().Warnf("%v", err)
	}
}
