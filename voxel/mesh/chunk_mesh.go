package mesh

import (
	"time"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/go-gl/mathgl/mgl32"
)

const DefaultAnimationDuration = 500 * time.Millisecond

// ChunkMesh is a reusable mesh slot. It refers to the chunk it shows by
// coordinate only; the store owns the chunk.
//
// Transitions:
//
//	UNASSIGNED -> REASSIGNED           Reassign
//	REASSIGNED | UNLOADED -> LOADED    Load
//	LOADED | REASSIGNED -> UNLOADED    Unload
//	UNLOADED -> UNASSIGNED             Unassign
//
// Requesting the current state is a no-op. A ChunkMesh is not safe for
// concurrent use; the pool issues every transition from one goroutine.
type ChunkMesh struct {
	id       int
	clock    Clock
	duration time.Duration
	height   float32

	state     State
	changedAt time.Duration

	chunk    volume.ChunkCoord
	hasChunk bool

	// Origin of the previous chunk, kept while the UNASSIGNED fade plays.
	lastOrigin    mgl32.Vec3
	hasLastOrigin bool

	// Bumped on every Reassign so late regeneration results can be matched
	// against the assignment that requested them.
	assignment uint64

	front *Buffer
	back  *Buffer

	OnStateChange func(m *ChunkMesh, from, to State)
}

func NewChunkMesh(id int, clock Clock, duration time.Duration) *ChunkMesh {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	if duration <= 0 {
		duration = DefaultAnimationDuration
	}
	return &ChunkMesh{
		id:       id,
		clock:    clock,
		duration: duration,
		height:   volume.ChunkSize,
		state:    Unassigned,
		// A fresh slot has nothing left to animate.
		changedAt: clock.Now() - duration,
		front:     NewBuffer(),
		back:      NewBuffer(),
	}
}

func (m *ChunkMesh) ID() int {
	return m.id
}

func (m *ChunkMesh) State() State {
	return m.state
}

// Chunk returns the chunk this slot refers to. The reference is held in
// REASSIGNED and LOADED, and in UNLOADED until the slot is unassigned.
func (m *ChunkMesh) Chunk() (volume.ChunkCoord, bool) {
	return m.chunk, m.hasChunk
}

// Front is the buffer the renderer draws.
func (m *ChunkMesh) Front() *Buffer {
	return m.front
}

func (m *ChunkMesh) Reassign(coord volume.ChunkCoord) error {
	switch m.state {
	case Reassigned:
		return nil
	case Unassigned:
	default:
		return invalidTransition(m.id, m.state, Reassigned)
	}

	m.chunk, m.hasChunk = coord, true
	m.hasLastOrigin = false
	m.assignment++
	m.setState(Reassigned)
	return nil
}

func (m *ChunkMesh) Load() error {
	switch m.state {
	case Loaded:
		return nil
	case Reassigned, Unloaded:
	default:
		return invalidTransition(m.id, m.state, Loaded)
	}
	m.setState(Loaded)
	return nil
}

func (m *ChunkMesh) Unload() error {
	switch m.state {
	case Unloaded:
		return nil
	case Loaded, Reassigned:
	default:
		return invalidTransition(m.id, m.state, Unloaded)
	}
	m.setState(Unloaded)
	return nil
}

func (m *ChunkMesh) Unassign() error {
	switch m.state {
	case Unassigned:
		return nil
	case Unloaded:
	default:
		return invalidTransition(m.id, m.state, Unassigned)
	}

	m.lastOrigin, m.hasLastOrigin = m.chunk.Origin(), true
	m.chunk, m.hasChunk = volume.ChunkCoord{}, false
	m.setState(Unassigned)
	return nil
}

func (m *ChunkMesh) setState(to State) {
	from := m.state
	m.state = to
	m.changedAt = m.clock.Now()
	if m.OnStateChange != nil {
		m.OnStateChange(m, from, to)
	}
}

// Renderable reports whether the renderer should draw this slot this frame.
// UNASSIGNED stays renderable so the exit fade can play out.
func (m *ChunkMesh) Renderable() bool {
	return m.state == Loaded || m.state == Unassigned
}

// Progress is the animation position in [0,1] since the last transition.
func (m *ChunkMesh) Progress() float32 {
	elapsed := m.clock.Now() - m.changedAt
	p := float32(elapsed) / float32(m.duration)
	return mgl32.Clamp(p, 0, 1)
}

func (m *ChunkMesh) FinishedAnimation() bool {
	return m.Progress() == 1
}

// Offset is the vertical animation displacement. Assigned slots rise from
// -height to their resting place; an unassigned slot sinks from rest to
// -height.
func (m *ChunkMesh) Offset() float32 {
	p := m.Progress()
	if m.state == Unassigned {
		return p * -m.height
	}
	return -m.height + p*m.height
}

// Origin is the world position the slot is drawn at, before animation.
func (m *ChunkMesh) Origin() (mgl32.Vec3, bool) {
	if m.hasChunk {
		return m.chunk.Origin(), true
	}
	if m.hasLastOrigin {
		return m.lastOrigin, true
	}
	return mgl32.Vec3{}, false
}

// Transform is the animated placement for this frame.
func (m *ChunkMesh) Transform() (core.Transform, bool) {
	origin, ok := m.Origin()
	if !ok {
		return core.Transform{}, false
	}
	return core.Translation(origin.Add(mgl32.Vec3{0, m.Offset(), 0})), true
}

// discardFade drops the cached origin and geometry once the exit fade is done.
func (m *ChunkMesh) discardFade() {
	m.hasLastOrigin = false
	m.front.Reset()
}

func (m *ChunkMesh) swap() {
	m.front, m.back = m.back, m.front
}
