package mesh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/gekko3d/voxstream/voxel/volume"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultMaxSlots   = 256
	DefaultRetryDelay = 8
)

type PoolConfig struct {
	// MaxSlots caps how many ChunkMesh slots the pool will ever create.
	MaxSlots int
	// Workers is the number of background meshing goroutines. Zero meshes
	// inline during Update.
	Workers int
	// AnimationDuration is the length of the rise and sink animations.
	AnimationDuration time.Duration
	// RetryDelay is how many updates a failed slot waits before retrying.
	RetryDelay int

	Clock      Clock
	Logger     Logger
	Mesher     Mesher
	Binder     Binder
	Registerer prometheus.Registerer

	OnStateChange func(m *ChunkMesh, from, to State)
}

type job struct {
	slot       int
	coord      volume.ChunkCoord
	assignment uint64
	buf        *Buffer

	ctx    context.Context
	cancel context.CancelFunc
}

type result struct {
	job     *job
	version uint64
	err     error
}

// RenderItem is one slot the renderer should draw this frame.
type RenderItem struct {
	Slot      int
	Handle    uuid.UUID
	Chunk     volume.ChunkCoord
	Transform core.Transform
	Vertices  []Vertex
	State     State
	Progress  float32
}

// Pool owns a bounded set of ChunkMesh slots and keeps them assigned to the
// visible loaded chunks. Update and Renderables must be called from one
// goroutine; meshing may run on workers.
type Pool struct {
	cfg     PoolConfig
	store   *volume.Store
	log     Logger
	metrics *Metrics

	slots   []*ChunkMesh
	free    []*ChunkMesh
	byCoord map[volume.ChunkCoord]*ChunkMesh

	inflight map[int]*job
	pending  map[int]struct{}
	retry    map[int]int

	ctx     context.Context
	cancel  context.CancelFunc
	work    chan *job
	results chan result
	inline  []result
	done    chan struct{}
	workers int
}

func NewPool(store *volume.Store, cfg PoolConfig) *Pool {
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = DefaultMaxSlots
	}
	if cfg.AnimationDuration <= 0 {
		cfg.AnimationDuration = DefaultAnimationDuration
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = NewMonotonicClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.Mesher == nil {
		cfg.Mesher = NewFaceMesher(volume.DefaultRegistry())
	}
	if cfg.Binder == nil {
		cfg.Binder = NopBinder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:      cfg,
		store:    store,
		log:      cfg.Logger,
		metrics:  NewMetrics(cfg.Registerer),
		byCoord:  make(map[volume.ChunkCoord]*ChunkMesh),
		inflight: make(map[int]*job),
		pending:  make(map[int]struct{}),
		retry:    make(map[int]int),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if cfg.Workers > 0 {
		// One job per slot at most, so neither channel can fill.
		p.work = make(chan *job, cfg.MaxSlots)
		p.results = make(chan result, cfg.MaxSlots)
		p.workers = cfg.Workers
		for i := 0; i < cfg.Workers; i++ {
			go p.worker()
		}
	}
	return p
}

// Close stops the workers and cancels in-flight jobs. The pool must not be
// updated afterwards.
func (p *Pool) Close() {
	p.cancel()
	if p.work == nil {
		return
	}
	close(p.work)
	for i := 0; i < p.workers; i++ {
		<-p.done
	}
}

func (p *Pool) worker() {
	defer func() { p.done <- struct{}{} }()
	for j := range p.work {
		r := p.run(j)
		select {
		case p.results <- r:
		case <-p.ctx.Done():
		}
	}
}

func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// Slots returns every slot created so far, in creation order.
func (p *Pool) Slots() []*ChunkMesh {
	return slices.Clone(p.slots)
}

// MeshFor returns the slot assigned to coord.
func (p *Pool) MeshFor(coord volume.ChunkCoord) (*ChunkMesh, bool) {
	m, ok := p.byCoord[coord]
	return m, ok
}

// Busy reports whether any regeneration is queued, running or waiting to
// retry.
func (p *Pool) Busy() bool {
	return len(p.inflight) > 0 || len(p.pending) > 0 || len(p.retry) > 0
}

// Update reconciles slot assignments with the visible set, schedules
// regeneration for edited chunks and applies finished meshing results.
// It returns the meshing failures collected during this update.
func (p *Pool) Update(visible []volume.ChunkCoord) []error {
	dirty := p.store.DrainDirty()

	want := make(map[volume.ChunkCoord]struct{}, len(visible))
	for _, c := range visible {
		if p.store.IsLoaded(c) {
			want[c] = struct{}{}
		}
	}

	var drop []volume.ChunkCoord
	for c := range p.byCoord {
		if _, ok := want[c]; !ok {
			drop = append(drop, c)
		}
	}
	volume.SortCoords(drop)
	for _, c := range drop {
		p.release(p.byCoord[c])
	}

	assigned := make(map[volume.ChunkCoord]struct{})
	for _, c := range visible {
		if _, ok := want[c]; !ok {
			continue
		}
		if _, ok := p.byCoord[c]; ok {
			continue
		}
		m := p.acquire()
		if m == nil {
			p.log.Warnf("mesh pool exhausted at %d slots, chunk %v not shown", len(p.slots), c)
			break
		}
		p.contract(m.Reassign(c))
		p.byCoord[c] = m
		assigned[c] = struct{}{}
		p.schedule(m)
	}

	for _, c := range dirty {
		if _, ok := assigned[c]; ok {
			continue
		}
		if m, ok := p.byCoord[c]; ok {
			p.schedule(m)
		}
	}

	for _, id := range sortedKeys(p.retry) {
		if p.retry[id]--; p.retry[id] <= 0 {
			delete(p.retry, id)
			p.schedule(p.slots[id])
		}
	}

	for _, m := range p.slots {
		if m.State() == Unassigned && m.hasLastOrigin && m.FinishedAnimation() {
			p.cfg.Binder.Release(m.front.Handle)
			m.discardFade()
		}
	}

	errs := p.collect()
	p.metrics.observe(p.slots)
	return errs
}

// Renderables lists the slots to draw this frame with their animated
// placement.
func (p *Pool) Renderables() []RenderItem {
	var items []RenderItem
	for _, m := range p.slots {
		if !m.Renderable() || m.front.Len() == 0 {
			continue
		}
		tr, ok := m.Transform()
		if !ok {
			continue
		}
		coord, _ := m.Chunk()
		items = append(items, RenderItem{
			Slot:      m.id,
			Handle:    m.front.Handle,
			Chunk:     coord,
			Transform: tr,
			Vertices:  m.front.Vertices(),
			State:     m.State(),
			Progress:  m.Progress(),
		})
	}
	return items
}

func (p *Pool) release(m *ChunkMesh) {
	coord, _ := m.Chunk()
	delete(p.byCoord, coord)
	if j, ok := p.inflight[m.id]; ok {
		j.cancel()
	}
	delete(p.pending, m.id)
	delete(p.retry, m.id)

	p.contract(m.Unload())
	p.contract(m.Unassign())
	p.free = append(p.free, m)
}

// acquire prefers a free slot whose exit animation has finished, then a new
// slot, and finally steals the free slot closest to finishing.
func (p *Pool) acquire() *ChunkMesh {
	pick := -1
	for i, m := range p.free {
		if m.FinishedAnimation() {
			pick = i
			break
		}
	}
	if pick < 0 && len(p.slots) < p.cfg.MaxSlots {
		return p.newSlot()
	}
	if pick < 0 {
		best := float32(-1)
		for i, m := range p.free {
			if pr := m.Progress(); pr > best {
				pick, best = i, pr
			}
		}
	}
	if pick < 0 {
		return nil
	}

	m := p.free[pick]
	p.free = slices.Delete(p.free, pick, pick+1)
	if m.hasLastOrigin {
		p.cfg.Binder.Release(m.front.Handle)
	}
	m.discardFade()
	return m
}

func (p *Pool) newSlot() *ChunkMesh {
	m := NewChunkMesh(len(p.slots), p.cfg.Clock, p.cfg.AnimationDuration)
	m.OnStateChange = p.cfg.OnStateChange
	p.slots = append(p.slots, m)
	return m
}

func (p *Pool) schedule(m *ChunkMesh) {
	if _, busy := p.inflight[m.id]; busy {
		p.pending[m.id] = struct{}{}
		return
	}
	coord, ok := m.Chunk()
	if !ok {
		return
	}
	delete(p.retry, m.id)

	ctx, cancel := context.WithCancel(p.ctx)
	j := &job{
		slot:       m.id,
		coord:      coord,
		assignment: m.assignment,
		buf:        m.back,
		ctx:        ctx,
		cancel:     cancel,
	}
	p.inflight[m.id] = j
	p.metrics.Regenerations.Inc()

	if p.work == nil {
		p.inline = append(p.inline, p.run(j))
		return
	}
	p.work <- j
}

func (p *Pool) run(j *job) result {
	r := result{job: j}
	if err := j.ctx.Err(); err != nil {
		r.err = err
		return r
	}
	snap, err := p.store.Snapshot(j.coord)
	if err != nil {
		r.err = err
		return r
	}
	r.version = snap.Version
	j.buf.Reset()
	r.err = p.cfg.Mesher.Mesh(j.ctx, snap, j.buf)
	return r
}

func (p *Pool) collect() []error {
	var errs []error
	for {
		var r result
		if len(p.inline) > 0 {
			r = p.inline[0]
			p.inline = p.inline[1:]
		} else if p.results != nil {
			select {
			case r = <-p.results:
			default:
				return errs
			}
		} else {
			return errs
		}
		if err := p.finish(r); err != nil {
			errs = append(errs, err)
		}
	}
}

func (p *Pool) finish(r result) error {
	j := r.job
	j.cancel()
	delete(p.inflight, j.slot)
	m := p.slots[j.slot]
	defer func() {
		if _, ok := p.pending[j.slot]; ok {
			delete(p.pending, j.slot)
			p.schedule(m)
		}
	}()

	if m.assignment != j.assignment || errors.Is(r.err, context.Canceled) || errors.Is(r.err, volume.ErrNoSuchChunk) {
		p.metrics.Discarded.Inc()
		return nil
	}
	if r.err != nil {
		return p.fail(m, fmt.Errorf("mesh chunk %v: %w", j.coord, r.err))
	}

	c, ok := p.store.Chunk(j.coord)
	if !ok {
		p.metrics.Discarded.Inc()
		return nil
	}
	if c.Version() != r.version {
		p.metrics.Stale.Inc()
		p.pending[j.slot] = struct{}{}
		return nil
	}

	m.swap()
	if err := p.cfg.Binder.Bind(m.front.Handle, m.front.Vertices()); err != nil {
		m.swap()
		return p.fail(m, fmt.Errorf("bind chunk %v: %w", j.coord, err))
	}
	p.contract(m.Load())
	return nil
}

// fail leaves the slot in its current state and retries after RetryDelay
// updates.
func (p *Pool) fail(m *ChunkMesh, err error) error {
	p.metrics.Failures.Inc()
	p.retry[m.id] = p.cfg.RetryDelay
	p.log.Warnf("slot %d: %v, retrying in %d updates", m.id, err, p.cfg.RetryDelay)
	return err
}

func (p *Pool) contract(err error) {
	if err == nil {
		return
	}
	if strictTransitions {
		panic(err)
	}
	p.log.Errorf("%v", err)
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
