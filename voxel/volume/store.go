package volume

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gekko3d/voxstream/voxel/spatial"
)

var (
	// ErrNoSuchChunk is returned when a position's chunk is not loaded.
	// Callers treat it as a no-op.
	ErrNoSuchChunk = errors.New("volume: no such chunk")
)

// Generator fills a freshly created chunk.
type Generator interface {
	Generate(c *Chunk) error
}

type GeneratorFunc func(c *Chunk) error

func (f GeneratorFunc) Generate(c *Chunk) error {
	return f(c)
}

// Store is the single owner of chunk data. The chunk map has its own lock;
// voxel reads and writes serialize on the chunk they touch.
type Store struct {
	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk

	dirtyMu sync.Mutex
	dirty   map[ChunkCoord]struct{}

	bounds *spatial.Index[spatial.Box, ChunkCoord]
}

func NewStore() *Store {
	return &Store{
		chunks: make(map[ChunkCoord]*Chunk),
		dirty:  make(map[ChunkCoord]struct{}),
		bounds: spatial.NewIndex[spatial.Box, ChunkCoord](ChunkSize),
	}
}

// Bounds indexes the world box of every loaded chunk.
func (s *Store) Bounds() *spatial.Index[spatial.Box, ChunkCoord] {
	return s.bounds
}

// Load returns the chunk at coord, creating and generating it if needed.
// Generation runs without holding the store lock.
func (s *Store) Load(coord ChunkCoord, gen Generator) (*Chunk, error) {
	if c, ok := s.Chunk(coord); ok {
		return c, nil
	}

	c := NewChunk(coord)
	if gen != nil {
		if err := gen.Generate(c); err != nil {
			return nil, fmt.Errorf("generate chunk %v: %w", coord, err)
		}
	}

	s.mu.Lock()
	if existing, ok := s.chunks[coord]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.chunks[coord] = c
	s.mu.Unlock()

	s.bounds.Add(spatial.BoxOf(coord.Bounds()), coord)
	s.markDirtyAround(coord)
	return c, nil
}

// Insert adds an already populated chunk, replacing any previous one.
func (s *Store) Insert(c *Chunk) {
	s.mu.Lock()
	s.chunks[c.coord] = c
	s.mu.Unlock()

	s.bounds.Add(spatial.BoxOf(c.coord.Bounds()), c.coord)
	s.markDirtyAround(c.coord)
}

// Unload drops the chunk. Meshes referring to it must look it up again and
// will find it gone.
func (s *Store) Unload(coord ChunkCoord) bool {
	s.mu.Lock()
	_, ok := s.chunks[coord]
	delete(s.chunks, coord)
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.bounds.Remove(spatial.BoxOf(coord.Bounds()), coord)

	s.dirtyMu.Lock()
	delete(s.dirty, coord)
	s.dirtyMu.Unlock()

	// Faces bordering the removed chunk are now exposed.
	s.markNeighboursDirty(coord)
	return true
}

func (s *Store) Chunk(coord ChunkCoord) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[coord]
	return c, ok
}

func (s *Store) IsLoaded(coord ChunkCoord) bool {
	_, ok := s.Chunk(coord)
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Loaded returns the coordinates of every loaded chunk in a stable order.
func (s *Store) Loaded() []ChunkCoord {
	s.mu.RLock()
	res := make([]ChunkCoord, 0, len(s.chunks))
	for c := range s.chunks {
		res = append(res, c)
	}
	s.mu.RUnlock()

	SortCoords(res)
	return res
}

func (s *Store) GetVoxelAtPosition(pos BlockPos) (VoxelType, error) {
	c, ok := s.Chunk(pos.Chunk())
	if !ok {
		return Air, fmt.Errorf("get voxel at %v: %w", pos, ErrNoSuchChunk)
	}
	lx, ly, lz := pos.Local()
	return c.Get(lx, ly, lz), nil
}

// SetVoxelAtPosition writes a voxel and marks the owning chunk dirty, along
// with any neighbour sharing the touched face.
func (s *Store) SetVoxelAtPosition(val VoxelType, pos BlockPos) error {
	coord := pos.Chunk()
	c, ok := s.Chunk(coord)
	if !ok {
		return fmt.Errorf("set voxel at %v: %w", pos, ErrNoSuchChunk)
	}

	lx, ly, lz := pos.Local()
	if !c.Set(lx, ly, lz, val) {
		return nil
	}

	touched := []ChunkCoord{coord}
	local := [3]int{lx, ly, lz}
	for axis := 0; axis < 3; axis++ {
		var d [3]int
		switch local[axis] {
		case 0:
			d[axis] = -1
		case ChunkSize - 1:
			d[axis] = 1
		default:
			continue
		}
		if nb := coord.Add(d[0], d[1], d[2]); s.IsLoaded(nb) {
			touched = append(touched, nb)
		}
	}

	s.dirtyMu.Lock()
	for _, t := range touched {
		s.dirty[t] = struct{}{}
	}
	s.dirtyMu.Unlock()
	return nil
}

// Snapshot copies a chunk and its apron for meshing.
func (s *Store) Snapshot(coord ChunkCoord) (*Snapshot, error) {
	c, ok := s.Chunk(coord)
	if !ok {
		return nil, fmt.Errorf("snapshot %v: %w", coord, ErrNoSuchChunk)
	}

	snap := &Snapshot{Coord: coord}
	snap.copyFrom(c, 0, 0, 0)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if nb, ok := s.Chunk(coord.Add(dx, dy, dz)); ok {
					snap.copyFrom(nb, dx, dy, dz)
				}
			}
		}
	}
	return snap, nil
}

// MarkDirty flags a loaded chunk for mesh regeneration.
func (s *Store) MarkDirty(coord ChunkCoord) {
	if !s.IsLoaded(coord) {
		return
	}
	s.dirtyMu.Lock()
	s.dirty[coord] = struct{}{}
	s.dirtyMu.Unlock()
}

// DrainDirty returns and clears the set of dirty chunks.
func (s *Store) DrainDirty() []ChunkCoord {
	s.dirtyMu.Lock()
	res := make([]ChunkCoord, 0, len(s.dirty))
	for c := range s.dirty {
		res = append(res, c)
	}
	clear(s.dirty)
	s.dirtyMu.Unlock()

	SortCoords(res)
	return res
}

func (s *Store) markDirtyAround(coord ChunkCoord) {
	s.dirtyMu.Lock()
	s.dirty[coord] = struct{}{}
	s.dirtyMu.Unlock()
	s.markNeighboursDirty(coord)
}

func (s *Store) markNeighboursDirty(coord ChunkCoord) {
	for _, d := range faceDirs {
		s.MarkDirty(coord.Add(d[0], d[1], d[2]))
	}
}

var faceDirs = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// CompareCoords orders coordinates by X, then Y, then Z.
func CompareCoords(a, b ChunkCoord) int {
	return cmp.Or(
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.Z, b.Z),
	)
}

func SortCoords(coords []ChunkCoord) {
	slices.SortFunc(coords, CompareCoords)
}
