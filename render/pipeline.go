package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/matchgrid/matchgrid"
	"github.com/matchgrid/matchgrid/anim"
	"github.com/matchgrid/matchgrid/cache"
	"github.com/matchgrid/matchgrid/pool"
)

// Default pipeline configuration constants.
const (
	// DefaultProduceTimeout bounds asset production on the cache miss
	// path. Expiry is treated as production failure.
	DefaultProduceTimeout = 100 * time.Millisecond

	// defaultObjectPoolInitial and defaultObjectPoolMax size the
	// built-in render-object pool.
	defaultObjectPoolInitial = 32
	defaultObjectPoolMax     = 1024
)

// Sentinel errors.
var (
	// ErrNotFound is returned for operations on unknown object ids.
	ErrNotFound = errors.New("render: object not found")

	// ErrDuplicateID is returned when adding an object whose id is
	// already registered.
	ErrDuplicateID = errors.New("render: duplicate object id")

	// ErrNilPayload is returned when adding an object without payload.
	ErrNilPayload = errors.New("render: object payload is nil")

	// ErrKindMismatch is returned when a Patch tries to swap an
	// object's payload across kinds.
	ErrKindMismatch = errors.New("render: patch payload kind mismatch")
)

// AssetProducer loads or renders the visual asset for an asset key.
// It is the asynchronous boundary of the pipeline: the call is bounded
// by ctx and its result is memoized by the sprite cache.
type AssetProducer func(ctx context.Context, assetKey string) (*image.RGBA, int64, error)

// scheduledEvent is a deferred action consumed by the per-tick loop.
// Events replace wall-clock timers so teardown cannot race callbacks.
type scheduledEvent struct {
	after  time.Duration
	due    time.Time
	armed  bool
	action func()
}

// FrameStats summarizes one Render call.
type FrameStats struct {
	// Skipped is true when nothing was dirty and no draw happened.
	Skipped bool
	// Duration is the wall time of the render call.
	Duration time.Duration
	// LayersRedrawn counts layers whose buffers were redrawn.
	LayersRedrawn int
	// ObjectsDrawn counts objects actually drawn.
	ObjectsDrawn int
	// ObjectsCulled counts objects skipped by viewport culling.
	ObjectsCulled int
	// Animated counts objects that received animated values.
	Animated int
	// DrawErrors counts isolated per-object/per-layer draw failures.
	DrawErrors int
}

// Pipeline is the layered render pipeline. All methods must be called
// from the frame tick goroutine; nothing here locks.
type Pipeline struct {
	surface Surface
	vp      matchgrid.Viewport

	layers [numLayers]*layer
	owner  map[string]LayerID

	timeline *anim.Timeline
	sprites  *cache.Cache[*image.RGBA]
	objects  *pool.Pool[*Object]

	produce        AssetProducer
	produceTimeout time.Duration

	parallax matchgrid.Point
	degrade  matchgrid.DegradeLevel

	events []*scheduledEvent

	allDirty      bool
	renderPending bool

	framesDrawn uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeline injects a shared animation timeline.
func WithTimeline(t *anim.Timeline) Option {
	return func(p *Pipeline) { p.timeline = t }
}

// WithSpriteCache injects a shared sprite cache.
func WithSpriteCache(c *cache.Cache[*image.RGBA]) Option {
	return func(p *Pipeline) { p.sprites = c }
}

// WithObjectPool injects a shared render-object pool.
func WithObjectPool(op *pool.Pool[*Object]) Option {
	return func(p *Pipeline) { p.objects = op }
}

// WithAssetProducer sets the producer invoked on sprite cache misses.
func WithAssetProducer(fn AssetProducer) Option {
	return func(p *Pipeline) { p.produce = fn }
}

// WithProduceTimeout bounds asset production time.
func WithProduceTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.produceTimeout = d
		}
	}
}

// New creates a pipeline drawing to surface for the given viewport.
// The pipeline owns its timeline, sprite cache and object pool unless
// shared instances are injected via options; there is no process-wide
// state.
func New(surface Surface, vp matchgrid.Viewport, opts ...Option) (*Pipeline, error) {
	if surface == nil {
		return nil, errors.New("render: nil surface")
	}
	p := &Pipeline{
		surface:        surface,
		vp:             vp,
		owner:          make(map[string]LayerID),
		produceTimeout: DefaultProduceTimeout,
		allDirty:       true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.timeline == nil {
		p.timeline = anim.NewTimeline()
	}
	p.timeline.SetTargetCheck(p.Has)
	if p.sprites == nil {
		p.sprites = cache.New[*image.RGBA]()
	}
	if p.objects == nil {
		op, err := pool.New(pool.Config[*Object]{
			Name:    "render-objects",
			Initial: defaultObjectPoolInitial,
			Max:     defaultObjectPoolMax,
			New:     func() *Object { o := &Object{}; o.reset(); return o },
			Reset:   func(o *Object) { o.reset() },
		})
		if err != nil {
			return nil, err
		}
		p.objects = op
	}

	w, h := surface.Width(), surface.Height()
	for i := range p.layers {
		p.layers[i] = newLayer(LayerID(i), w, h)
	}
	return p, nil
}

// Timeline returns the pipeline's animation timeline.
func (p *Pipeline) Timeline() *anim.Timeline { return p.timeline }

// SpriteCache returns the pipeline's sprite cache.
func (p *Pipeline) SpriteCache() *cache.Cache[*image.RGBA] { return p.sprites }

// ObjectPool returns the pipeline's render-object pool.
func (p *Pipeline) ObjectPool() *pool.Pool[*Object] { return p.objects }

// Viewport returns the current viewport.
func (p *Pipeline) Viewport() matchgrid.Viewport { return p.vp }

// Spawn acquires a pooled object initialized with the payload's default
// z value. Pool exhaustion surfaces as pool.ErrExhausted; the caller
// skips that object for the frame. A spawned object that a later
// AddObject rejects must be returned via ObjectPool().Release, or its
// in-use slot leaks.
func (p *Pipeline) Spawn(payload Payload) (*Object, error) {
	if payload == nil {
		return nil, ErrNilPayload
	}
	o, err := p.objects.Acquire()
	if err != nil {
		return nil, err
	}
	o.Payload = payload
	o.Z = defaultZ(payload.payloadKind())
	return o, nil
}

// AddObject registers an object, assigning a generated id when empty.
// The owning layer is selected by the object's z value and marked dirty.
// An Overlay payload with AutoHide schedules its own removal through the
// per-tick event queue.
func (p *Pipeline) AddObject(o *Object) (string, error) {
	if o.Payload == nil {
		return "", ErrNilPayload
	}
	if o.ID == "" {
		o.ID = NewObjectID()
	}
	if _, exists := p.owner[o.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
	}
	if o.Scale == 0 {
		o.Scale = 1
	}

	id := layerForZ(o.Z)
	p.layers[id].add(o)
	p.owner[o.ID] = id

	if ov, ok := o.Payload.(*Overlay); ok && ov.AutoHide > 0 {
		objID := o.ID
		p.ScheduleAfter(ov.AutoHide, func() {
			p.RemoveObject(objID)
		})
	}
	p.requestRender(o)
	return o.ID, nil
}

// RemoveObject unregisters an object, stops its animations and recycles
// it to the object pool. Returns false for unknown ids.
func (p *Pipeline) RemoveObject(id string) bool {
	layerID, ok := p.owner[id]
	if !ok {
		return false
	}
	o := p.layers[layerID].remove(id)
	delete(p.owner, id)
	p.timeline.StopTarget(id)
	if o != nil {
		p.objects.Release(o)
	}
	return true
}

// UpdateObject applies a partial update and marks the owning layer
// dirty. Unless the object is a high-frequency background object, the
// update also requests one coalesced out-of-band render for this tick.
// A z change that crosses a layer boundary moves the object.
func (p *Pipeline) UpdateObject(id string, patch Patch) error {
	layerID, ok := p.owner[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l := p.layers[layerID]
	o := l.objects[id]

	if patch.Payload != nil {
		if patch.Payload.payloadKind() != o.Kind() {
			return fmt.Errorf("%w: %s -> %s", ErrKindMismatch,
				o.Kind(), patch.Payload.payloadKind())
		}
		o.Payload = patch.Payload
	}
	if patch.Pos != nil {
		o.Pos = *patch.Pos
	}
	if patch.Size != nil {
		o.Size = *patch.Size
	}
	if patch.Visible != nil {
		o.Visible = *patch.Visible
	}
	if patch.Opacity != nil {
		o.Opacity = clamp01(*patch.Opacity)
	}
	if patch.Rotation != nil {
		o.Rotation = *patch.Rotation
	}
	if patch.Scale != nil {
		o.Scale = *patch.Scale
	}
	if patch.Z != nil && *patch.Z != o.Z {
		o.Z = *patch.Z
		if newLayerID := layerForZ(o.Z); newLayerID != layerID {
			l.remove(o.ID)
			p.layers[newLayerID].add(o)
			p.owner[o.ID] = newLayerID
		} else {
			l.sortStale = true
		}
	}

	l.dirty = true
	p.requestRender(o)
	return nil
}

// requestRender coalesces an out-of-band render request. High-frequency
// background/parallax objects are exempt; their churn waits for the
// regular tick.
func (p *Pipeline) requestRender(o *Object) {
	if o.Kind() == KindBackground {
		return
	}
	p.renderPending = true
}

// RenderRequested reports whether a coalesced out-of-band render is
// pending. Render clears the flag, so at most one extra render happens
// per tick.
func (p *Pipeline) RenderRequested() bool { return p.renderPending }

// Has reports whether an object id is registered. The timeline uses it
// to garbage-collect animations for removed targets.
func (p *Pipeline) Has(id string) bool {
	_, ok := p.owner[id]
	return ok
}

// Lookup returns the object for an id. The pipeline retains ownership;
// callers must not hold the pointer across a RemoveObject.
func (p *Pipeline) Lookup(id string) (*Object, bool) {
	layerID, ok := p.owner[id]
	if !ok {
		return nil, false
	}
	return p.layers[layerID].objects[id], true
}

// ObjectBounds exposes an object's scaled bounding box for external hit
// queries by the input collaborator.
func (p *Pipeline) ObjectBounds(id string) (matchgrid.Rect, bool) {
	o, ok := p.Lookup(id)
	if !ok {
		return matchgrid.Rect{}, false
	}
	return o.drawBounds(), true
}

// ObjectCount returns the number of registered objects.
func (p *Pipeline) ObjectCount() int { return len(p.owner) }

// HitTest returns the topmost visible object whose scaled bounds contain
// pt, or nil.
func (p *Pipeline) HitTest(pt matchgrid.Point) *Object {
	for li := numLayers - 1; li >= 0; li-- {
		sorted := p.layers[li].sorted()
		for i := len(sorted) - 1; i >= 0; i-- {
			o := sorted[i]
			if o.Visible && o.drawBounds().Contains(pt) {
				return o
			}
		}
	}
	return nil
}

// SetParallax updates the global parallax offset consumed by background
// objects. Only the background layer is marked dirty; no out-of-band
// render is requested for this high-frequency path.
func (p *Pipeline) SetParallax(offset matchgrid.Point) {
	if p.parallax == offset {
		return
	}
	p.parallax = offset
	p.layers[LayerBackground].dirty = true
}

// SetDegrade switches the fidelity tier. DegradeMinimal enables the
// simplified fallback mode (flat fills, no effects layer).
func (p *Pipeline) SetDegrade(level matchgrid.DegradeLevel) {
	if p.degrade == level {
		return
	}
	matchgrid.Logger().Info("render: degradation level changed",
		"from", p.degrade.String(), "to", level.String())
	p.degrade = level
	p.allDirty = true
}

// SetSurface installs a replacement surface handle after the external
// collaborator recreated the drawing context. Layer buffers are resized
// when the dimensions changed and the whole pipeline is marked dirty.
func (p *Pipeline) SetSurface(s Surface) {
	if s == nil {
		return
	}
	resized := s.Width() != p.surface.Width() || s.Height() != p.surface.Height()
	p.surface = s
	if resized {
		for _, l := range p.layers {
			l.resize(s.Width(), s.Height())
		}
	}
	p.allDirty = true
	matchgrid.Logger().Info("render: surface replaced",
		"width", s.Width(), "height", s.Height(), "resized", resized)
}

// SetViewport updates the culling viewport (typically alongside
// SetSurface on resize).
func (p *Pipeline) SetViewport(vp matchgrid.Viewport) {
	p.vp = vp
	p.allDirty = true
}

// Clear removes every object, recycling them to the pool. Layers persist.
func (p *Pipeline) Clear() {
	for _, l := range p.layers {
		for id, o := range l.objects {
			delete(l.objects, id)
			delete(p.owner, id)
			p.timeline.StopTarget(id)
			p.objects.Release(o)
		}
		l.dirty = true
		l.sortStale = true
	}
	p.allDirty = true
}

// ScheduleAfter queues an action to run on the first Render at least d
// after the next tick. Events are consumed by the per-tick loop rather
// than timers, so pipeline teardown cannot race a callback.
func (p *Pipeline) ScheduleAfter(d time.Duration, action func()) {
	p.events = append(p.events, &scheduledEvent{after: d, action: action})
}

// ScheduleAt queues an action to run on the first Render at or after due.
func (p *Pipeline) ScheduleAt(due time.Time, action func()) {
	p.events = append(p.events, &scheduledEvent{due: due, armed: true, action: action})
}

// runDueEvents arms relative events against now and fires due ones.
func (p *Pipeline) runDueEvents(now time.Time) {
	kept := p.events[:0]
	for _, ev := range p.events {
		if !ev.armed {
			ev.due = now.Add(ev.after)
			ev.armed = true
		}
		if ev.due.After(now) {
			kept = append(kept, ev)
			continue
		}
		ev.action()
	}
	for i := len(kept); i < len(p.events); i++ {
		p.events[i] = nil
	}
	p.events = kept
}

// Render draws one frame at the monotonic timestamp now.
//
// Animation advancement always happens first, so the frame observes
// consistent, already-advanced values. If nothing is dirty afterwards
// the frame is skipped. Otherwise dirty layers are redrawn (all of them
// on a fully-dirty pipeline) and every visible layer is composited onto
// the surface in z-order. Per-object and per-layer failures are
// recovered, logged and counted; Render never panics out of the tick.
func (p *Pipeline) Render(now time.Time) FrameStats {
	start := time.Now()
	var stats FrameStats

	// 1. Advance animations and apply values to their targets.
	for target, vals := range p.timeline.Step(now) {
		o, ok := p.Lookup(target)
		if !ok {
			continue
		}
		p.applyAnimated(o, vals)
		p.layers[p.owner[target]].dirty = true
		stats.Animated++
	}

	// 2. Consume due scheduled events (auto-hide, deferred spawns).
	p.runDueEvents(now)

	// 3. Dirty check.
	anyDirty := p.allDirty
	for _, l := range p.layers {
		if l.dirty {
			anyDirty = true
			break
		}
	}
	if !anyDirty {
		p.renderPending = false
		stats.Skipped = true
		stats.Duration = time.Since(start)
		return stats
	}

	// 4. Redraw dirty layers into their buffers.
	for _, l := range p.layers {
		if !p.allDirty && !l.dirty {
			continue
		}
		if p.degrade >= matchgrid.DegradeMinimal && l.id == LayerEffects {
			// Fallback mode drops the effects layer entirely.
			l.clearBuf()
			l.dirty = false
			continue
		}
		p.redrawLayer(l, now, &stats)
		stats.LayersRedrawn++
	}

	// 5. Composite every layer onto the surface in z-order.
	dst := p.surface.Image()
	clearImage(dst)
	for _, l := range p.layers {
		if p.degrade >= matchgrid.DegradeMinimal && l.id == LayerEffects {
			continue
		}
		l.compositeOnto(dst)
	}

	p.allDirty = false
	p.renderPending = false
	p.framesDrawn++
	stats.Duration = time.Since(start)

	matchgrid.Logger().Debug("render: frame",
		"layers", stats.LayersRedrawn,
		"drawn", stats.ObjectsDrawn,
		"culled", stats.ObjectsCulled,
		"errors", stats.DrawErrors,
	)
	return stats
}

// redrawLayer redraws a single layer buffer with culling and isolated
// per-object error recovery.
func (p *Pipeline) redrawLayer(l *layer, now time.Time, stats *FrameStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.DrawErrors++
			matchgrid.Logger().Warn("render: layer draw failed",
				"layer", l.id.String(), "panic", r)
		}
		l.dirty = false
	}()

	l.clearBuf()
	viewport := p.vp.Bounds()
	for _, o := range l.sorted() {
		if !o.Visible || o.Opacity <= 0 {
			continue
		}
		if !o.drawBounds().Intersects(viewport) {
			stats.ObjectsCulled++
			continue
		}
		if p.drawObjectSafe(l, o, now) {
			stats.ObjectsDrawn++
		} else {
			stats.DrawErrors++
		}
	}
}

// drawObjectSafe isolates a single object draw; a panic is recovered and
// logged, and the remaining objects still draw.
func (p *Pipeline) drawObjectSafe(l *layer, o *Object, now time.Time) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			matchgrid.Logger().Warn("render: object draw failed",
				"id", o.ID, "kind", o.Kind().String(), "panic", r)
		}
	}()
	p.drawObject(l.buf, o, now)
	return true
}

// applyAnimated writes animated property values into an object.
func (p *Pipeline) applyAnimated(o *Object, vals anim.Values) {
	for prop, v := range vals {
		switch prop {
		case anim.PropX:
			o.Pos.X = v
		case anim.PropY:
			o.Pos.Y = v
		case anim.PropOpacity:
			o.Opacity = clamp01(v)
		case anim.PropScale:
			o.Scale = v
		case anim.PropRotation:
			o.Rotation = v
		}
	}
}

// FramesDrawn returns the number of non-skipped frames rendered.
func (p *Pipeline) FramesDrawn() uint64 { return p.framesDrawn }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clearImage zeroes an RGBA buffer.
func clearImage(img *image.RGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}
