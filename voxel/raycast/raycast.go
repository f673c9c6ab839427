package raycast

import (
	"math"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/gekko3d/voxstream/voxel/spatial"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultReach is how far a player can interact, in voxels.
const DefaultReach = 8

const maxSteps = 4096

// VoxelSource is read by the DDA walk. volume.Store satisfies it.
type VoxelSource interface {
	GetVoxelAtPosition(pos volume.BlockPos) (volume.VoxelType, error)
}

type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

// Hit is the first solid voxel a ray enters. Normal points out of the face
// the ray came through.
type Hit struct {
	Block  volume.BlockPos
	Normal [3]int
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
	T      float32
}

// Adjacent is the cell in front of the hit face, where a placed voxel goes.
func (h Hit) Adjacent() volume.BlockPos {
	return h.Block.Add(h.Normal)
}

type Raycaster struct {
	Source   VoxelSource
	Bounds   *spatial.Index[spatial.Box, volume.ChunkCoord]
	Registry *volume.Registry
}

func New(store *volume.Store, reg *volume.Registry) *Raycaster {
	return &Raycaster{Source: store, Bounds: store.Bounds(), Registry: reg}
}

func (r *Raycaster) solid(v volume.VoxelType) bool {
	if r.Registry == nil {
		return v != volume.Air
	}
	return r.Registry.IsSolid(v)
}

// Cast walks the voxel grid along ray with a 3D DDA and returns the first
// solid voxel within maxDist. The cell holding the origin is never a hit.
func (r *Raycaster) Cast(ray Ray, maxDist float32) (Hit, bool) {
	if ray.Dir.Len() == 0 || maxDist <= 0 {
		return Hit{}, false
	}
	dir := ray.Dir.Normalize()
	origin := ray.Origin

	// Broad phase: only chunks the segment can touch.
	segment := core.NewAABB(origin, origin.Add(dir.Mul(maxDist)))
	var (
		region core.AABB
		found  bool
	)
	for box := range r.Bounds.Query(spatial.BoxOf(segment)) {
		if !found {
			region, found = box.AABB(), true
			continue
		}
		region = region.Union(box.AABB())
	}
	if !found {
		return Hit{}, false
	}

	cell := volume.BlockPosOf(origin)
	var step [3]int
	var tMax, tDelta [3]float32
	for i := 0; i < 3; i++ {
		d := dir[i]
		switch {
		case d > 0:
			step[i] = 1
			tDelta[i] = 1 / d
			tMax[i] = (float32(cell[i]+1) - origin[i]) / d
		case d < 0:
			step[i] = -1
			tDelta[i] = -1 / d
			tMax[i] = (float32(cell[i]) - origin[i]) / d
		default:
			tDelta[i] = float32(math.Inf(1))
			tMax[i] = float32(math.Inf(1))
		}
	}

	for n := 0; n < maxSteps; n++ {
		// Lowest axis wins ties so equal inputs walk equal cells.
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}

		t := tMax[axis]
		if t > maxDist {
			return Hit{}, false
		}
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]

		center := mgl32.Vec3{float32(cell[0]) + 0.5, float32(cell[1]) + 0.5, float32(cell[2]) + 0.5}
		if !region.Contains(center) {
			return Hit{}, false
		}

		// Gaps between loaded chunks read as ErrNoSuchChunk and are passed through.
		v, err := r.Source.GetVoxelAtPosition(cell)
		if err != nil || !r.solid(v) {
			continue
		}

		var normal [3]int
		normal[axis] = -step[axis]
		return Hit{Block: cell, Normal: normal, Origin: origin, Dir: dir, T: t}, true
	}
	return Hit{}, false
}

// FromCamera is the ray through the center of the view.
func FromCamera(cam *core.CameraState, table *core.SineTable) Ray {
	return Ray{Origin: cam.Position, Dir: cam.Forward(table)}
}

// FromScreen is the ray through window pixel (x, y).
func FromScreen(cam *core.CameraState, table *core.SineTable, x, y float64, width, height int) (Ray, error) {
	origin, dir, err := cam.ScreenRay(table, x, y, width, height)
	if err != nil {
		return Ray{}, err
	}
	return Ray{Origin: origin, Dir: dir}, nil
}
