package voxstream

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/gekko3d/voxstream/voxel/gpu"
	"github.com/gekko3d/voxstream/voxel/mesh"
	"github.com/go-gl/mathgl/mgl32"
)

const chunkShader = `
struct Camera {
	view_proj: mat4x4<f32>,
};
@group(0) @binding(0) var<uniform> camera: Camera;

struct VsIn {
	@location(0) pos: vec3<f32>,
	@location(1) normal: vec3<f32>,
	@location(2) voxel: u32,
	@location(3) shade: f32,
	@location(4) offset: vec4<f32>,
};

struct VsOut {
	@builtin(position) clip: vec4<f32>,
	@location(0) color: vec3<f32>,
};

fn palette(v: u32) -> vec3<f32> {
	switch v {
		case 1u: { return vec3<f32>(0.50, 0.50, 0.52); }
		case 2u: { return vec3<f32>(0.45, 0.32, 0.20); }
		case 3u: { return vec3<f32>(0.30, 0.62, 0.24); }
		case 4u: { return vec3<f32>(0.86, 0.80, 0.55); }
		case 5u: { return vec3<f32>(0.70, 0.52, 0.30); }
		default: { return vec3<f32>(1.0, 0.0, 1.0); }
	}
}

@vertex
fn vs_main(in: VsIn) -> VsOut {
	var out: VsOut;
	let world = in.pos + in.offset.xyz;
	out.clip = camera.view_proj * vec4<f32>(world, 1.0);
	let light = 0.6 + 0.4 * max(dot(in.normal, normalize(vec3<f32>(0.3, 1.0, 0.5))), 0.0);
	out.color = palette(in.voxel) * light * in.shade;
	return out;
}

@fragment
fn fs_main(in: VsOut) -> @location(0) vec4<f32> {
	return vec4<f32>(in.color, 1.0);
}
`

const (
	depthFormat  = wgpu.TextureFormatDepth24Plus
	instanceSize = 16
)

type GpuState struct {
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
}

// ChunkRenderer draws the mesh pool's renderables with one pipeline. Each
// chunk's animated origin is an instance-rate vertex attribute.
type ChunkRenderer struct {
	pipeline  *wgpu.RenderPipeline
	camera    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	instances *wgpu.Buffer
	scratch   []byte
}

// GpuModule opens the wgpu device on the window surface and provides the
// mesh binder and chunk renderer. Install it after PlatformWindowModule.
type GpuModule struct{}

func (m GpuModule) Install(app *App, cmd *Commands) {
	ws, ok := Resource[WindowState](app)
	if !ok {
		panic("GpuModule requires PlatformWindowModule")
	}
	gs, err := createGpuState(ws)
	if err != nil {
		panic(err)
	}
	binder, err := gpu.NewBufferBinder(gs.device)
	if err != nil {
		panic(err)
	}
	renderer, err := createChunkRenderer(gs)
	if err != nil {
		panic(err)
	}

	ensureSineTable(app)
	cmd.AddResources(gs, binder, renderer)
	app.OnClose(func() {
		renderer.release()
		binder.Close()
		gs.release()
	})

	app.UseSystem(
		System(ChunkRenderSystem).
			InStage(Render).
			RunAlways(),
	)
}

func createGpuState(s *WindowState) (*GpuState, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.windowGlfw))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}

	caps := surface.GetCapabilities(adapter)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(s.WindowWidth),
		Height:      uint32(s.WindowHeight),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	gs := &GpuState{
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         device.GetQueue(),
		surfaceConfig: &surfaceConfig,
	}
	if err := gs.createDepth(); err != nil {
		return nil, err
	}
	return gs, nil
}

func (gs *GpuState) createDepth() error {
	if gs.depthView != nil {
		gs.depthView.Release()
		gs.depthTexture.Release()
	}
	tex, err := gs.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth",
		Size: wgpu.Extent3D{
			Width:              gs.surfaceConfig.Width,
			Height:             gs.surfaceConfig.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("failed to create depth view: %w", err)
	}
	gs.depthTexture = tex
	gs.depthView = view
	return nil
}

// resize reconfigures the surface when the window size changed.
func (gs *GpuState) resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if uint32(width) == gs.surfaceConfig.Width && uint32(height) == gs.surfaceConfig.Height {
		return nil
	}
	gs.surfaceConfig.Width = uint32(width)
	gs.surfaceConfig.Height = uint32(height)
	gs.surface.Configure(gs.adapter, gs.device, gs.surfaceConfig)
	return gs.createDepth()
}

func (gs *GpuState) release() {
	if gs.depthView != nil {
		gs.depthView.Release()
		gs.depthTexture.Release()
	}
	gs.device.Release()
	gs.adapter.Release()
	gs.surface.Release()
}

func createChunkRenderer(gs *GpuState) (*ChunkRenderer, error) {
	shader, err := gs.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ChunkShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: chunkShader},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile chunk shader: %w", err)
	}
	defer shader.Release()

	stencil := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	pipeline, err := gs.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "ChunkPipeline",
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{gpu.VertexLayout(), instanceLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    gs.surfaceConfig.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      stencil,
			StencilBack:       stencil,
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk pipeline: %w", err)
	}

	camera, err := gs.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ChunkCamera",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("failed to create camera buffer: %w", err)
	}

	layout := pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bindGroup, err := gs.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  camera,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		camera.Release()
		pipeline.Release()
		return nil, fmt.Errorf("failed to create camera bind group: %w", err)
	}

	return &ChunkRenderer{pipeline: pipeline, camera: camera, bindGroup: bindGroup}, nil
}

func instanceLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: instanceSize,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes: []wgpu.VertexAttribute{
			{ShaderLocation: 4, Offset: 0, Format: wgpu.VertexFormatFloat32x4},
		},
	}
}

// encodeInstances writes one vec4 per item: the animated chunk origin and
// the item's draw progress.
func encodeInstances(dst []byte, items []mesh.RenderItem) []byte {
	need := len(items) * instanceSize
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]
	for i, it := range items {
		b := dst[i*instanceSize:]
		p := it.Transform.Position
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(p.X()))
		binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(p.Y()))
		binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(p.Z()))
		binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(it.Progress))
	}
	return dst
}

func matrixBytes(m mgl32.Mat4) []byte {
	out := make([]byte, len(m)*4)
	for i, f := range m {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func (r *ChunkRenderer) uploadInstances(gs *GpuState, items []mesh.RenderItem) error {
	r.scratch = encodeInstances(r.scratch, items)
	if len(r.scratch) == 0 {
		return nil
	}
	if r.instances == nil || r.instances.GetSize() < uint64(len(r.scratch)) {
		if r.instances != nil {
			r.instances.Release()
		}
		buf, err := gs.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "ChunkInstances",
			Size:  uint64(max(len(r.scratch), mesh.DefaultMaxSlots*instanceSize)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			r.instances = nil
			return fmt.Errorf("failed to create instance buffer: %w", err)
		}
		r.instances = buf
	}
	return gs.queue.WriteBuffer(r.instances, 0, r.scratch)
}

func (r *ChunkRenderer) release() {
	if r.instances != nil {
		r.instances.Release()
	}
	r.bindGroup.Release()
	r.camera.Release()
	r.pipeline.Release()
}

// ChunkRenderSystem draws every renderable chunk from the first camera.
func ChunkRenderSystem(cmd *Commands, gs *GpuState, ws *WindowState, renderer *ChunkRenderer, binder *gpu.BufferBinder, pool *mesh.Pool, table *core.SineTable) {
	var cam *core.CameraState
	MakeQuery1[CameraComponent](cmd).Map(func(eid EntityId, c *CameraComponent) bool {
		state := c.CameraState
		cam = &state
		return false
	})
	if cam == nil {
		return
	}
	if err := gs.resize(ws.WindowWidth, ws.WindowHeight); err != nil {
		cmd.Logger().Errorf("resize surface: %v", err)
		return
	}

	items := pool.Renderables()
	if err := renderer.uploadInstances(gs, items); err != nil {
		cmd.Logger().Errorf("upload chunk instances: %v", err)
		return
	}
	viewProj := cam.Projection(ws.WindowWidth, ws.WindowHeight).Mul4(cam.ViewMatrix(table))
	if err := gs.queue.WriteBuffer(renderer.camera, 0, matrixBytes(viewProj)); err != nil {
		cmd.Logger().Errorf("upload camera: %v", err)
		return
	}

	nextTexture, err := gs.surface.GetCurrentTexture()
	if err != nil {
		cmd.Logger().Warnf("acquire surface texture: %v", err)
		return
	}
	defer nextTexture.Release()
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		cmd.Logger().Errorf("create surface view: %v", err)
		return
	}
	defer view.Release()

	encoder, err := gs.device.CreateCommandEncoder(nil)
	if err != nil {
		cmd.Logger().Errorf("create command encoder: %v", err)
		return
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.55, G: 0.75, B: 0.95, A: 1.0},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            gs.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	pass.SetPipeline(renderer.pipeline)
	pass.SetBindGroup(0, renderer.bindGroup, nil)
	if renderer.instances != nil {
		pass.SetVertexBuffer(1, renderer.instances, 0, renderer.instances.GetSize())
	}
	for i, it := range items {
		binder.Draw(pass, it.Handle, uint32(i))
	}
	if err := pass.End(); err != nil {
		cmd.Logger().Errorf("end chunk pass: %v", err)
	}
	pass.Release()

	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		cmd.Logger().Errorf("finish command encoder: %v", err)
		return
	}
	defer cmdBuffer.Release()

	gs.queue.Submit(cmdBuffer)
	gs.surface.Present()
}
