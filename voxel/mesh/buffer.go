package mesh

import (
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/google/uuid"
)

// Vertex matches the renderer's vertex layout: 32 bytes, chunk-local position.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Voxel    uint32
	Shade    float32
}

const (
	VertexSize = 32

	// Worst case is a 3D checkerboard: half the voxels solid, each with all
	// six faces exposed, four vertices per face.
	MaxQuads    = volume.ChunkSize * volume.ChunkSize * volume.ChunkSize / 2 * 6
	MaxVertices = MaxQuads * 4
	MaxIndices  = MaxQuads * 6
)

// QuadIndices returns the shared index pattern (two triangles per quad)
// covering MaxQuads quads.
func QuadIndices() []uint32 {
	idx := make([]uint32, 0, MaxIndices)
	for q := uint32(0); q < MaxQuads; q++ {
		base := q * 4
		idx = append(idx, base, base+1, base+2, base, base+2, base+3)
	}
	return idx
}

// initialVertices covers typical surface terrain without growing.
const initialVertices = 4096

// Buffer is a vertex store that is reset and refilled in place. It holds at
// most MaxVertices. Storage starts small and is allocated at full capacity
// the first time a mesh outgrows it, after which it is never reallocated.
type Buffer struct {
	Handle   uuid.UUID
	vertices []Vertex
}

func NewBuffer() *Buffer {
	return &Buffer{
		Handle:   uuid.New(),
		vertices: make([]Vertex, 0, initialVertices),
	}
}

func (b *Buffer) Reset() {
	b.vertices = b.vertices[:0]
}

func (b *Buffer) Append(vs ...Vertex) error {
	n := len(b.vertices) + len(vs)
	if n > MaxVertices {
		return ErrBufferFull
	}
	if n > cap(b.vertices) {
		// Grow once, straight to the cap.
		grown := make([]Vertex, len(b.vertices), MaxVertices)
		copy(grown, b.vertices)
		b.vertices = grown
	}
	b.vertices = append(b.vertices, vs...)
	return nil
}

func (b *Buffer) Vertices() []Vertex {
	return b.vertices
}

func (b *Buffer) Len() int {
	return len(b.vertices)
}

func (b *Buffer) Quads() int {
	return len(b.vertices) / 4
}

// Binder uploads published geometry to wherever the renderer reads it from.
// Bind is called with the same handle each time a buffer is republished.
type Binder interface {
	Bind(handle uuid.UUID, vertices []Vertex) error
	Release(handle uuid.UUID)
}

type NopBinder struct{}

func (NopBinder) Bind(handle uuid.UUID, vertices []Vertex) error { return nil }
func (NopBinder) Release(handle uuid.UUID)                      {}
