package volume

import "fmt"

type VoxelType uint8

const Air VoxelType = 0

// VoxelInfo describes one registered voxel type.
type VoxelInfo struct {
	Name  string
	Solid bool
}

// Registry is the fixed table of voxel types the mesher and raycaster
// understand. Ids not present in it are malformed chunk data.
type Registry struct {
	infos map[VoxelType]VoxelInfo
}

func NewRegistry() *Registry {
	r := &Registry{infos: make(map[VoxelType]VoxelInfo)}
	r.infos[Air] = VoxelInfo{Name: "air"}
	return r
}

// DefaultRegistry registers a handful of terrain voxels.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(1, VoxelInfo{Name: "stone", Solid: true})
	r.MustRegister(2, VoxelInfo{Name: "dirt", Solid: true})
	r.MustRegister(3, VoxelInfo{Name: "grass", Solid: true})
	r.MustRegister(4, VoxelInfo{Name: "sand", Solid: true})
	r.MustRegister(5, VoxelInfo{Name: "planks", Solid: true})
	return r
}

func (r *Registry) Register(id VoxelType, info VoxelInfo) error {
	if _, ok := r.infos[id]; ok {
		return fmt.Errorf("voxel type %d already registered as %q", id, r.infos[id].Name)
	}
	r.infos[id] = info
	return nil
}

func (r *Registry) MustRegister(id VoxelType, info VoxelInfo) {
	if err := r.Register(id, info); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(id VoxelType) (VoxelInfo, bool) {
	info, ok := r.infos[id]
	return info, ok
}

func (r *Registry) IsSolid(id VoxelType) bool {
	return r.infos[id].Solid
}
