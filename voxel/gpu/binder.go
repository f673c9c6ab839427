package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/voxstream/voxel/mesh"
	"github.com/google/uuid"
)

// VertexLayout describes mesh.Vertex to a render pipeline.
func VertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: mesh.VertexSize,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3},
			{ShaderLocation: 1, Offset: 12, Format: wgpu.VertexFormatFloat32x3},
			{ShaderLocation: 2, Offset: 24, Format: wgpu.VertexFormatUint32},
			{ShaderLocation: 3, Offset: 28, Format: wgpu.VertexFormatFloat32},
		},
	}
}

// EncodeVertices packs vertices into dst in the little-endian layout
// VertexLayout describes, growing dst as needed.
func EncodeVertices(dst []byte, vs []mesh.Vertex) []byte {
	need := len(vs) * mesh.VertexSize
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	for i, v := range vs {
		b := dst[i*mesh.VertexSize:]
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(v.Position[0]))
		binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(v.Position[1]))
		binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(v.Position[2]))
		binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(v.Normal[0]))
		binary.LittleEndian.PutUint32(b[16:20], math.Float32bits(v.Normal[1]))
		binary.LittleEndian.PutUint32(b[20:24], math.Float32bits(v.Normal[2]))
		binary.LittleEndian.PutUint32(b[24:28], v.Voxel)
		binary.LittleEndian.PutUint32(b[28:32], math.Float32bits(v.Shade))
	}
	return dst
}

func encodeIndices(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, v := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// bufferSize rounds up to a power of two so a growing chunk does not
// reallocate on every edit.
func bufferSize(n int) uint64 {
	size := uint64(1024)
	for size < uint64(n) {
		size <<= 1
	}
	return size
}

type vertexBuffer struct {
	buf   *wgpu.Buffer
	count uint32
}

// BufferBinder keeps one GPU vertex buffer per mesh buffer handle and a
// shared quad index buffer.
type BufferBinder struct {
	device *wgpu.Device

	mu      sync.Mutex
	buffers map[uuid.UUID]*vertexBuffer
	index   *wgpu.Buffer
	scratch []byte
}

func NewBufferBinder(device *wgpu.Device) (*BufferBinder, error) {
	indices := mesh.QuadIndices()
	index, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ChunkQuadIndices",
		Size:  uint64(len(indices) * 4),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quad index buffer: %w", err)
	}
	if err := device.GetQueue().WriteBuffer(index, 0, encodeIndices(indices)); err != nil {
		index.Release()
		return nil, fmt.Errorf("failed to upload quad indices: %w", err)
	}

	return &BufferBinder{
		device:  device,
		buffers: make(map[uuid.UUID]*vertexBuffer),
		index:   index,
	}, nil
}

func (b *BufferBinder) Bind(handle uuid.UUID, vertices []mesh.Vertex) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scratch = EncodeVertices(b.scratch, vertices)
	vb, ok := b.buffers[handle]
	if !ok {
		vb = &vertexBuffer{}
		b.buffers[handle] = vb
	}
	vb.count = uint32(len(vertices))
	if len(b.scratch) == 0 {
		return nil
	}

	if vb.buf == nil || vb.buf.GetSize() < uint64(len(b.scratch)) {
		if vb.buf != nil {
			vb.buf.Release()
		}
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "ChunkVertices " + handle.String(),
			Size:  bufferSize(len(b.scratch)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			vb.buf = nil
			return fmt.Errorf("failed to create vertex buffer: %w", err)
		}
		vb.buf = buf
	}
	return b.device.GetQueue().WriteBuffer(vb.buf, 0, b.scratch)
}

func (b *BufferBinder) Release(handle uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if vb, ok := b.buffers[handle]; ok {
		if vb.buf != nil {
			vb.buf.Release()
		}
		delete(b.buffers, handle)
	}
}

// Draw issues an indexed draw for the buffer bound under handle. instance
// selects the per-chunk entry of whatever instance-rate buffer the caller
// bound at slot 1.
func (b *BufferBinder) Draw(pass *wgpu.RenderPassEncoder, handle uuid.UUID, instance uint32) {
	b.mu.Lock()
	vb, ok := b.buffers[handle]
	b.mu.Unlock()
	if !ok || vb.buf == nil || vb.count == 0 {
		return
	}
	pass.SetVertexBuffer(0, vb.buf, 0, vb.buf.GetSize())
	pass.SetIndexBuffer(b.index, wgpu.IndexFormatUint32, 0, b.index.GetSize())
	pass.DrawIndexed(vb.count/4*6, 1, 0, 0, instance)
}

func (b *BufferBinder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for h, vb := range b.buffers {
		if vb.buf != nil {
			vb.buf.Release()
		}
		delete(b.buffers, h)
	}
	if b.index != nil {
		b.index.Release()
		b.index = nil
	}
}
