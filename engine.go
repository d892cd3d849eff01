// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// engine.go is the public entry point: graph loading, the per-frame tick,
// algorithm and configuration switching, lifecycle, and position access.
// The engine exclusively owns the graph state, the alpha controller, and
// the active simulator back-end; host code drives one Tick per frame from
// its main loop.

package heroine

import (
	"errors"
	"fmt"

	"github.com/tomWhiting/heroine-graph/internal/gpu"
	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/layout"
	"github.com/tomWhiting/heroine-graph/internal/sim"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// Registered algorithm IDs.
const (
	AlgoN2         = simcore.AlgoN2
	AlgoBarnesHut  = simcore.AlgoBarnesHut
	AlgoLinLog     = simcore.AlgoLinLog
	AlgoTFDP       = simcore.AlgoTFDP
	AlgoRelativity = simcore.AlgoRelativity
	AlgoTidyTree   = simcore.AlgoTidyTree
	AlgoCommunity  = simcore.AlgoCommunity
	AlgoCodebase   = simcore.AlgoCodebase
)

// Algorithms lists every registered algorithm ID.
func Algorithms() []string { return simcore.AlgorithmIDs() }

// Bounds is an axis-aligned bounding box over node positions.
type Bounds struct {
	MinX, MinY float32
	MaxX, MaxY float32
}

// phyllotaxisSpacing seeds absent positions on the sunflower spiral; a
// graph of N nodes starts inside radius sqrt(N)*10.
const phyllotaxisSpacing = 10

// simulator is the back-end contract both internal/sim.Executor (CPU) and
// internal/gpu.Pipeline satisfy.
type simulator interface {
	Name() string
	Reset(st *graphstate.State, params simcore.Params, algorithm string) error
	SetAlgorithm(id string) error
	Algorithm() string
	Configure(params simcore.Params)
	MarkTopologyDirty()
	RequiresBounds() bool
	Recompute() error
	Step(frame simcore.Frame) error
	SyncPositions() error
	WritePosition(slot uint32, x, y float32)
	WriteNodeFromShadow(slot uint32)
	WriteEdgeFromShadow(slot uint32)
	Grow() error
	Release()
}

// Engine is the graph layout engine facade.
type Engine struct {
	opts   engineOptions
	st     *graphstate.State
	sim    simulator
	ctrl   *alphaController
	events *emitter

	config ForceConfig
	params simcore.Params

	// pinnedID is the node held in place by SetNodePosition / PinNode;
	// the config's PinnedNode is consulted when it is empty.
	pinnedID string

	selectedNodes []string
	selectedEdges []string

	edgeAutoID int
	disposed   bool
}

// NewEngine creates an engine. By default it opens a headless GPU compute
// device; construction fails with ErrUnsupportedPlatform when none is
// available unless WithSoftwareFallback or WithSoftwareSimulation is set.
func NewEngine(opts ...Option) (*Engine, error) {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		opts:   o,
		ctrl:   newAlphaController(),
		events: newEmitter(),
		config: o.config,
	}
	e.ctrl.alphaDecay = o.alphaDecay
	e.params = e.config.sanitize()

	backend, err := selectBackend(o)
	if err != nil {
		return nil, err
	}
	e.sim = backend

	e.st = graphstate.New(0, 0)
	e.st.SetGrowthEnabled(!o.noGrowth)
	if err := e.sim.Reset(e.st, e.params, o.algorithm); err != nil {
		e.sim.Release()
		return nil, err
	}

	Logger().Info("engine created",
		"backend", e.sim.Name(),
		"algorithm", o.algorithm)
	return e, nil
}

// selectBackend picks the simulator per the construction options.
func selectBackend(o engineOptions) (simulator, error) {
	if o.software {
		return sim.NewExecutor(), nil
	}
	var (
		p   *gpu.Pipeline
		err error
	)
	if o.provider != nil {
		p, err = gpu.NewPipelineWithProvider(o.provider)
	} else {
		p, err = gpu.NewPipeline()
	}
	if err == nil {
		return p, nil
	}
	if o.fallback {
		Logger().Warn("GPU unavailable, falling back to software simulation", "error", err)
		return sim.NewExecutor(), nil
	}
	if errors.Is(err, gpu.ErrNoAdapter) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrPipelineCompile, err)
}

// Close releases every resource. A disposed engine ignores all subsequent
// mutation calls; pending readbacks silently drop their results.
func (e *Engine) Close() error {
	if e.disposed {
		return nil
	}
	e.disposed = true
	e.ctrl.status = StatusStopped
	e.sim.Release()
	return nil
}

// =============================================================================
// Loading
// =============================================================================

// Load replaces the engine's graph. Absent positions seed on the
// phyllotaxis spiral; alpha resets to 1. The previous graph's slots are
// discarded (this is the only operation that defragments slot space).
func (e *Engine) Load(g Graph) error {
	if e.disposed {
		return ErrDisposed
	}

	st := graphstate.New(len(g.Nodes), len(g.Edges))
	st.SetGrowthEnabled(!e.opts.noGrowth)

	for i := range g.Nodes {
		n := &g.Nodes[i]
		slot, err := st.AllocateNodeSlot(n.ID)
		if err != nil {
			return mapStateErr(err)
		}
		fillNodeRow(st, slot, n)
	}
	for i := range g.Edges {
		edge := &g.Edges[i]
		src, ok := st.NodeSlot(edge.Source)
		if !ok {
			return fmt.Errorf("%w: edge source %q", ErrUnknownID, edge.Source)
		}
		tgt, ok := st.NodeSlot(edge.Target)
		if !ok {
			return fmt.Errorf("%w: edge target %q", ErrUnknownID, edge.Target)
		}
		id := edge.ID
		if id == "" {
			id = e.nextEdgeID(edge.Source, edge.Target)
		}
		slot, err := st.AllocateEdgeSlot(id, src, tgt)
		if err != nil {
			return mapStateErr(err)
		}
		fillEdgeRow(st, slot, edge)
		st.AddEdgeAdjacency(slot, src, tgt)
	}
	st.ComputeDepths()

	e.st = st
	e.pinnedID = ""
	e.selectedNodes = nil
	e.selectedEdges = nil
	if err := e.sim.Reset(st, e.params, e.sim.Algorithm()); err != nil {
		return err
	}
	e.ctrl.alpha = 1
	e.ctrl.tickCount = 0

	b := e.bounds()
	e.events.emit(Event{Type: EventGraphLoad, Bounds: b})
	e.events.emit(Event{Type: EventViewportChange, Bounds: b})
	Logger().Info("graph loaded",
		"nodes", st.NodeCount(),
		"edges", st.EdgeCount(),
		"backend", e.sim.Name())
	return nil
}

// LoadTyped replaces the graph from columnar data. Column lengths must
// match the declared counts; mismatches surface ErrInvalidGraphData with
// the expected and actual lengths.
func (e *Engine) LoadTyped(g TypedGraph) error {
	if e.disposed {
		return ErrDisposed
	}
	if err := g.validate(); err != nil {
		return err
	}

	st := graphstate.New(g.NodeCount, g.EdgeCount)
	st.SetGrowthEnabled(!e.opts.noGrowth)

	for i := 0; i < g.NodeCount; i++ {
		id := fmt.Sprintf("n%d", i)
		if g.NodeIDs != nil {
			id = g.NodeIDs[i]
		}
		slot, err := st.AllocateNodeSlot(id)
		if err != nil {
			return mapStateErr(err)
		}
		if g.X != nil {
			st.PosX[slot], st.PosY[slot] = g.X[i], g.Y[i]
		} else {
			st.PosX[slot], st.PosY[slot] = layout.Phyllotaxis(slot, phyllotaxisSpacing)
		}
		radius := float32(DefaultNodeRadius)
		if g.Radius != nil && g.Radius[i] > 0 {
			radius = g.Radius[i]
		}
		writeNodeAttrs(st, slot, radius, defaultNodeColor)
	}
	for i := 0; i < g.EdgeCount; i++ {
		src, tgt := g.EdgeSources[i], g.EdgeTargets[i]
		if src >= st.NodeHighWater() || tgt >= st.NodeHighWater() {
			return fmt.Errorf("%w: edge %d endpoints (%d,%d) out of range", ErrInvalidGraphData, i, src, tgt)
		}
		slot, err := st.AllocateEdgeSlot(fmt.Sprintf("e%d", i), src, tgt)
		if err != nil {
			return mapStateErr(err)
		}
		weight := float32(1)
		if g.Weights != nil {
			weight = g.Weights[i]
		}
		st.EdgeWeight[slot] = weight
		st.EdgeAttrs[slot*graphstate.EdgeAttrStride] = 1
		st.AddEdgeAdjacency(slot, src, tgt)
	}
	st.ComputeDepths()

	e.st = st
	e.pinnedID = ""
	e.selectedNodes = nil
	e.selectedEdges = nil
	if err := e.sim.Reset(st, e.params, e.sim.Algorithm()); err != nil {
		return err
	}
	e.ctrl.alpha = 1
	e.ctrl.tickCount = 0

	b := e.bounds()
	e.events.emit(Event{Type: EventGraphLoad, Bounds: b})
	e.events.emit(Event{Type: EventViewportChange, Bounds: b})
	return nil
}

// fillNodeRow initializes a freshly allocated node slot from its record.
func fillNodeRow(st *graphstate.State, slot uint32, n *Node) {
	if n.X != nil && n.Y != nil {
		st.PosX[slot], st.PosY[slot] = *n.X, *n.Y
	} else {
		st.PosX[slot], st.PosY[slot] = layout.Phyllotaxis(slot, phyllotaxisSpacing)
	}
	radius := n.Radius
	if radius <= 0 {
		radius = DefaultNodeRadius
	}
	writeNodeAttrs(st, slot, radius, n.nodeColor())
	st.Category[slot] = categoryTag(n.Type)
}

func writeNodeAttrs(st *graphstate.State, slot uint32, radius float32, c Color) {
	row := st.NodeAttrs[slot*graphstate.NodeAttrStride:]
	row[0] = radius
	row[1] = c.R
	row[2] = c.G
	row[3] = c.B
	row[4] = 0 // selected
	row[5] = 0 // hovered
}

// fillEdgeRow initializes a freshly allocated edge slot from its record.
func fillEdgeRow(st *graphstate.State, slot uint32, edge *Edge) {
	width := edge.Width
	if width <= 0 {
		width = 1
	}
	c := edge.edgeColor()
	row := st.EdgeAttrs[slot*graphstate.EdgeAttrStride:]
	row[0] = width
	row[1] = c.R
	row[2] = c.G
	row[3] = c.B
	row[4] = 0 // selected
	row[5] = 0 // hovered
	row[6] = edge.Curvature
	row[7] = 0 // reserved
	weight := edge.Weight
	if weight <= 0 {
		weight = 1
	}
	st.EdgeWeight[slot] = weight
}

func (e *Engine) nextEdgeID(src, tgt string) string {
	e.edgeAutoID++
	return fmt.Sprintf("%s->%s#%d", src, tgt, e.edgeAutoID)
}

func mapStateErr(err error) error {
	switch {
	case errors.Is(err, graphstate.ErrDuplicateID):
		return fmt.Errorf("%w: %v", ErrDuplicateID, err)
	case errors.Is(err, graphstate.ErrCapacityExceeded):
		return fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
	default:
		return err
	}
}

// =============================================================================
// Lifecycle and ticking
// =============================================================================

// Start begins (or resumes) the simulation.
func (e *Engine) Start() {
	if e.disposed {
		return
	}
	e.ctrl.status = StatusRunning
	if e.ctrl.alpha < e.ctrl.alphaMin {
		e.ctrl.alpha = e.ctrl.alphaMin
	}
}

// Pause suspends ticking without losing state.
func (e *Engine) Pause() {
	if e.disposed {
		return
	}
	if e.ctrl.status == StatusRunning {
		e.ctrl.status = StatusPaused
	}
}

// Stop halts the simulation; Restart or Start revives it.
func (e *Engine) Stop() {
	if e.disposed {
		return
	}
	e.ctrl.status = StatusStopped
}

// Restart reheats to full temperature and runs.
func (e *Engine) Restart() {
	if e.disposed {
		return
	}
	e.ctrl.alpha = 1
	e.ctrl.status = StatusRunning
}

// SetVisible implements the tab-visibility protocol: hiding pauses a
// running simulation and remembers it; showing resumes iff it ran before.
func (e *Engine) SetVisible(visible bool) {
	if e.disposed {
		return
	}
	if visible {
		e.ctrl.visible()
	} else {
		e.ctrl.hidden()
	}
}

// Status returns the simulation lifecycle state.
func (e *Engine) Status() SimStatus { return e.ctrl.status }

// Alpha returns the current simulation temperature.
func (e *Engine) Alpha() float32 { return e.ctrl.alpha }

// TickCount returns the number of ticks advanced since the last load.
func (e *Engine) TickCount() uint64 { return e.ctrl.tickCount }

// Tick advances the simulation one frame. A paused, stopped, or empty
// engine ticks as a no-op. While scene bounds are needed (the active
// algorithm requires them, or grid collision runs above 5000 nodes), a fatal
// condition (all positions non-finite, or degenerate bounds under a
// bounds-requiring algorithm) stops the simulation and ErrCorrupted is
// returned.
func (e *Engine) Tick() error {
	if e.disposed {
		return ErrDisposed
	}
	if e.ctrl.status != StatusRunning || e.st.NodeHighWater() == 0 {
		return nil
	}

	alpha := e.ctrl.tick()
	frame := simcore.Frame{
		NodeCount:     e.st.NodeCount(),
		EdgeCount:     e.st.EdgeCount(),
		Alpha:         alpha,
		Damping:       e.ctrl.effectiveDamping(e.params.VelocityDecay),
		PinnedSlot:    e.pinnedSlot(),
		SyncPositions: e.ctrl.tickCount%e.opts.syncInterval == 0,
	}

	needBounds := e.sim.RequiresBounds() ||
		(e.params.CollisionEnabled && e.st.NodeCount() > 5000)
	if needBounds {
		if e.st.Corrupted() {
			return e.fatal("all node positions non-finite")
		}
		b := e.st.ComputeBounds().WithMargin()
		if !b.Valid() && e.sim.RequiresBounds() {
			return e.fatal("degenerate scene bounds")
		}
		frame.Bounds = b
	}

	if err := e.sim.Step(frame); err != nil {
		if errors.Is(err, sim.ErrBoundsRequired) {
			return e.fatal(err.Error())
		}
		return err
	}
	return nil
}

// fatal stops the simulation and surfaces ErrCorrupted.
func (e *Engine) fatal(reason string) error {
	e.ctrl.status = StatusStopped
	Logger().Error("simulation stopped", "reason", reason)
	return fmt.Errorf("%w: %s", ErrCorrupted, reason)
}

func (e *Engine) pinnedSlot() uint32 {
	id := e.pinnedID
	if id == "" {
		id = e.config.PinnedNode
	}
	if id == "" {
		return simcore.NoPin
	}
	slot, ok := e.st.NodeSlot(id)
	if !ok {
		return simcore.NoPin
	}
	return slot
}

// =============================================================================
// Configuration and algorithms
// =============================================================================

// SetForceAlgorithm switches the repulsion stage. The old algorithm's GPU
// resources are destroyed, the new one's created at current capacity, and
// the temperature bumps to at least 0.5 so the layout re-settles.
func (e *Engine) SetForceAlgorithm(id string) error {
	if e.disposed {
		return ErrDisposed
	}
	known := false
	for _, a := range simcore.AlgorithmIDs() {
		if a == id {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, id)
	}
	if err := e.sim.SetAlgorithm(id); err != nil {
		return err
	}
	e.ctrl.bump(0.5)
	return nil
}

// ForceAlgorithm returns the active algorithm ID.
func (e *Engine) ForceAlgorithm() string { return e.sim.Algorithm() }

// ForceConfig returns a copy of the current configuration.
func (e *Engine) ForceConfig() ForceConfig { return e.config }

// SetForceConfig merges a full configuration. Values never reject:
// out-of-range options clamp, and cross-parameter constraints adjust the
// offending value (t-FDP beta reduces when alpha*(1+beta) >= 1). The
// temperature bumps to at least 0.3.
func (e *Engine) SetForceConfig(cfg ForceConfig) {
	if e.disposed {
		return
	}
	e.config = cfg
	e.params = cfg.sanitize()
	e.sim.Configure(e.params)
	e.ctrl.bump(0.3)
}

// RecomputeLayout rebuilds precomputed-layout targets from the current
// graph (tidy tree, community, codebase); a no-op for force algorithms.
func (e *Engine) RecomputeLayout() error {
	if e.disposed {
		return ErrDisposed
	}
	if err := e.sim.Recompute(); err != nil {
		return err
	}
	e.sim.MarkTopologyDirty()
	e.ctrl.bump(0.3)
	return nil
}

// =============================================================================
// Position access and events
// =============================================================================

// NodeCount returns the number of live nodes.
func (e *Engine) NodeCount() int { return int(e.st.NodeCount()) }

// EdgeCount returns the number of live edges.
func (e *Engine) EdgeCount() int { return int(e.st.EdgeCount()) }

// Positions returns the CPU shadow position lanes, slot-indexed up to the
// high-water mark. The shadow trails the GPU by at most the sync interval.
// The slices are borrowed: valid until the next Load, and read-only.
func (e *Engine) Positions() (x, y []float32) {
	n := e.st.NodeHighWater()
	return e.st.PosX[:n], e.st.PosY[:n]
}

// SyncPositions forces an immediate readback of committed positions into
// the CPU shadow.
func (e *Engine) SyncPositions() error {
	if e.disposed {
		return ErrDisposed
	}
	if err := e.sim.SyncPositions(); err != nil {
		return fmt.Errorf("%w: %v", ErrReadbackFailed, err)
	}
	return nil
}

// NodePosition returns a node's latest synced position.
func (e *Engine) NodePosition(id string) (x, y float32, ok bool) {
	slot, found := e.st.NodeSlot(id)
	if !found {
		return 0, 0, false
	}
	return e.st.PosX[slot], e.st.PosY[slot], true
}

// SceneBounds returns the bounding box over live finite positions.
func (e *Engine) SceneBounds() (Bounds, bool) {
	b := e.st.ComputeBounds()
	return Bounds{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}, b.Valid()
}

func (e *Engine) bounds() Bounds {
	b, _ := e.SceneBounds()
	return b
}

// On registers an event handler and returns an unsubscribe func.
func (e *Engine) On(t EventType, h Handler) func() {
	return e.events.on(t, h)
}
