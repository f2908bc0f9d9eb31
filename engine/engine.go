// Package engine composes the layout optimizer, render pipeline,
// animation timeline, resource cache, pools and performance monitor
// into a single frame-ticked facade for a match-game board.
//
// The engine is cooperative: the host calls Tick once per frame and all
// engine methods from that same goroutine. Nothing here locks.
package engine

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"time"

	"github.com/matchgrid/matchgrid"
	"github.com/matchgrid/matchgrid/anim"
	"github.com/matchgrid/matchgrid/cache"
	"github.com/matchgrid/matchgrid/layout"
	"github.com/matchgrid/matchgrid/perf"
	"github.com/matchgrid/matchgrid/pool"
	"github.com/matchgrid/matchgrid/render"
)

// Default engine configuration constants.
const (
	// DefaultMoveDuration is the item reposition animation length.
	DefaultMoveDuration = 300 * time.Millisecond

	// DefaultFlipDuration is the reveal pulse length.
	DefaultFlipDuration = 200 * time.Millisecond

	// DefaultFadeDuration is the matched-item removal fade length.
	DefaultFadeDuration = 250 * time.Millisecond

	// defaultToastHeight is the toast overlay height in pixels.
	defaultToastHeight = 48
)

// ErrUnknownItem is returned for operations on item ids not on the board.
var ErrUnknownItem = errors.New("engine: unknown item")

// Item describes one matchable board item. The engine performs no
// match-rule interpretation; rules live with the host.
type Item struct {
	// ID is the stable domain id of the item.
	ID string

	// AssetKey references the face-up visual and doubles as the sprite
	// cache key.
	AssetKey string

	// Category and Rarity are passthrough visual tags.
	Category string
	Rarity   uint8
}

// Stats aggregates the engine's collaborator statistics.
type Stats struct {
	// Perf is the smoothed performance snapshot.
	Perf perf.Snapshot
	// Cache is the sprite cache snapshot.
	Cache cache.Stats
	// ObjectPool is the render-object pool snapshot.
	ObjectPool pool.Stats
	// Objects is the number of registered render objects.
	Objects int
	// Items is the number of items on the board.
	Items int
}

// Option configures an Engine.
type Option func(*Engine)

// WithAssetProducer sets the producer invoked on sprite cache misses.
func WithAssetProducer(fn render.AssetProducer) Option {
	return func(e *Engine) { e.produce = fn }
}

// WithMonitor injects a pre-configured performance monitor.
func WithMonitor(m *perf.Monitor) Option {
	return func(e *Engine) { e.monitor = m }
}

// WithMoveDuration overrides the reposition animation length.
func WithMoveDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.moveDur = d
		}
	}
}

// WithLayoutParams overrides the device-derived layout parameters.
func WithLayoutParams(p layout.Params) Option {
	return func(e *Engine) { e.layoutParams = &p }
}

// Engine owns the board's render state and drives it from the frame
// tick. Create one per surface with New.
type Engine struct {
	pipeline *render.Pipeline
	timeline *anim.Timeline
	sprites  *cache.Cache[*image.RGBA]
	monitor  *perf.Monitor
	pools    *pool.Manager

	produce      render.AssetProducer
	layoutParams *layout.Params

	grid  layout.Grid
	order []string          // item ids in layout order
	items map[string]string // item id -> render object id

	backgroundID string
	debugID      string

	degrade  matchgrid.DegradeLevel
	lastTick time.Time
	moveDur  time.Duration
	flipDur  time.Duration
	fadeDur  time.Duration

	lastFrame render.FrameStats
}

// New creates an engine drawing to surface for the given viewport.
func New(surface render.Surface, vp matchgrid.Viewport, opts ...Option) (*Engine, error) {
	e := &Engine{
		timeline: anim.NewTimeline(),
		sprites:  cache.New[*image.RGBA](),
		pools:    pool.NewManager(),
		items:    make(map[string]string),
		moveDur:  DefaultMoveDuration,
		flipDur:  DefaultFlipDuration,
		fadeDur:  DefaultFadeDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.monitor == nil {
		e.monitor = perf.New()
	}

	p, err := render.New(surface, vp,
		render.WithTimeline(e.timeline),
		render.WithSpriteCache(e.sprites),
		render.WithAssetProducer(e.produce),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.pipeline = p

	if err := e.pools.Register(p.ObjectPool()); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.monitor.SetCacheStats(e.sprites.Stats)
	e.monitor.AddSweeper(func(now time.Time) {
		e.sprites.Sweep(now)
		e.pools.ResizeAll()
	})

	matchgrid.Logger().Info("engine: created",
		"width", surface.Width(), "height", surface.Height(),
		"device", vp.Device.String(), "orientation", vp.Orient.String())
	return e, nil
}

// Pipeline returns the underlying render pipeline.
func (e *Engine) Pipeline() *render.Pipeline { return e.pipeline }

// Monitor returns the performance monitor.
func (e *Engine) Monitor() *perf.Monitor { return e.monitor }

// Grid returns the most recent computed layout.
func (e *Engine) Grid() layout.Grid { return e.grid }

// Tick advances one frame: the previous frame duration feeds the
// performance monitor, a degradation change propagates to the layout and
// pipeline, then the pipeline renders. Returns the frame stats.
func (e *Engine) Tick(now time.Time) render.FrameStats {
	if !e.lastTick.IsZero() {
		e.monitor.Sample(now.Sub(e.lastTick), now)
	}
	e.lastTick = now

	if lvl := e.monitor.Degrade(); lvl != e.degrade {
		e.degrade = lvl
		e.pipeline.SetDegrade(lvl)
		if err := e.Relayout(); err != nil {
			matchgrid.Logger().Warn("engine: relayout after degrade change failed",
				"err", err)
		}
	}

	e.refreshDebug()
	e.lastFrame = e.pipeline.Render(now)
	return e.lastFrame
}

// SetItems replaces the board contents and lays the new items out.
// Existing item objects are recycled; non-item objects (background,
// overlays) persist.
func (e *Engine) SetItems(items []Item) error {
	for _, objID := range e.items {
		e.pipeline.RemoveObject(objID)
	}
	e.order = e.order[:0]
	clear(e.items)

	for _, it := range items {
		o, err := e.pipeline.Spawn(&render.ContentItem{
			ItemID:   it.ID,
			AssetKey: it.AssetKey,
			Category: it.Category,
			Rarity:   it.Rarity,
		})
		if err != nil {
			return fmt.Errorf("engine: spawning item %q: %w", it.ID, err)
		}
		objID, err := e.addSpawned(o)
		if err != nil {
			return fmt.Errorf("engine: adding item %q: %w", it.ID, err)
		}
		e.order = append(e.order, it.ID)
		e.items[it.ID] = objID
	}
	return e.Relayout()
}

// Relayout recomputes the grid for the current items and viewport and
// moves every item into place. Items already on the board animate to
// their new positions; fresh items fade in at their position directly.
// Motion is suppressed under reduced-motion viewports and degraded
// fidelity tiers.
func (e *Engine) Relayout() error {
	if len(e.order) == 0 {
		e.grid = layout.Grid{}
		return nil
	}

	opts := []layout.Option{layout.WithDegrade(e.degrade)}
	if e.layoutParams != nil {
		opts = append(opts, layout.WithParams(*e.layoutParams))
	}
	grid, err := layout.Compute(len(e.order), e.pipeline.Viewport(), opts...)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.grid = grid

	size := matchgrid.Size{Width: grid.ItemWidth, Height: grid.ItemHeight}
	for i, itemID := range e.order {
		objID := e.items[itemID]
		o, ok := e.pipeline.Lookup(objID)
		if !ok {
			continue
		}
		target := grid.Positions[i]

		if o.Size.IsZero() {
			// Fresh spawn: place directly and fade in.
			opacity := 0.0
			if err := e.pipeline.UpdateObject(objID, render.Patch{
				Pos: &target, Size: &size, Opacity: &opacity,
			}); err != nil {
				return err
			}
			e.timeline.Add(anim.Animation{
				Target:   objID,
				Duration: e.motionDuration(e.moveDur),
				Tracks: []anim.Track{
					{Property: anim.PropOpacity, From: 0, To: 1, Ease: anim.EaseOutCubic},
				},
			})
			continue
		}

		if err := e.pipeline.UpdateObject(objID, render.Patch{Size: &size}); err != nil {
			return err
		}
		if o.Pos == target {
			continue
		}
		// Competing move animations would fight over the same tracks.
		e.timeline.StopTarget(objID)
		e.timeline.Add(anim.Animation{
			Target:   objID,
			Duration: e.motionDuration(e.moveDur),
			Tracks: []anim.Track{
				{Property: anim.PropX, From: o.Pos.X, To: target.X, Ease: anim.EaseOutCubic},
				{Property: anim.PropY, From: o.Pos.Y, To: target.Y, Ease: anim.EaseOutCubic},
			},
		})
	}

	matchgrid.Logger().Debug("engine: relayout",
		"items", grid.ItemCount, "rows", grid.Rows, "cols", grid.Cols,
		"forced", grid.Forced)
	return nil
}

// Shuffle randomly permutes the items across the grid cells and animates
// the moves. The grid shape is unchanged.
func (e *Engine) Shuffle(rng *rand.Rand) error {
	rng.Shuffle(len(e.order), func(i, j int) {
		e.order[i], e.order[j] = e.order[j], e.order[i]
	})
	return e.Relayout()
}

// Resize installs a replacement surface and viewport and lays the board
// out again.
func (e *Engine) Resize(surface render.Surface, vp matchgrid.Viewport) error {
	e.pipeline.SetSurface(surface)
	e.pipeline.SetViewport(vp)
	if e.backgroundID != "" {
		pos := matchgrid.Point{}
		size := matchgrid.Size{Width: vp.Width, Height: vp.Height}
		if err := e.pipeline.UpdateObject(e.backgroundID, render.Patch{
			Pos: &pos, Size: &size,
		}); err != nil {
			return err
		}
	}
	return e.Relayout()
}

// Reveal flips an item face-up or face-down with a short pulse.
func (e *Engine) Reveal(itemID string, revealed bool) error {
	objID, ok := e.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	o, ok := e.pipeline.Lookup(objID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	item, ok := o.Payload.(*render.ContentItem)
	if !ok || item.Revealed == revealed {
		return nil
	}

	flipped := *item
	flipped.Revealed = revealed
	if err := e.pipeline.UpdateObject(objID, render.Patch{Payload: &flipped}); err != nil {
		return err
	}
	if d := e.motionDuration(e.flipDur); d > 0 {
		e.timeline.Add(anim.Animation{
			Target:   objID,
			Duration: d,
			Tracks: []anim.Track{
				{Property: anim.PropScale, From: 0.8, To: 1, Ease: anim.EaseOutBack},
			},
		})
	}
	return nil
}

// RemoveItems takes matched items off the board. With motion enabled the
// items fade and shrink out, and their render objects are recycled when
// the fade completes; otherwise they are removed immediately. The grid is
// not recomputed; remaining items keep their cells until Relayout.
func (e *Engine) RemoveItems(itemIDs ...string) error {
	for _, itemID := range itemIDs {
		objID, ok := e.items[itemID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
		}
		delete(e.items, itemID)
		e.removeFromOrder(itemID)

		d := e.motionDuration(e.fadeDur)
		if d <= 0 {
			e.pipeline.RemoveObject(objID)
			continue
		}
		e.timeline.StopTarget(objID)
		e.timeline.Add(anim.Animation{
			Target:   objID,
			Duration: d,
			Tracks: []anim.Track{
				{Property: anim.PropOpacity, From: 1, To: 0, Ease: anim.EaseInQuad},
				{Property: anim.PropScale, From: 1, To: 0.6, Ease: anim.EaseInQuad},
			},
			OnComplete: func(target string) {
				e.pipeline.RemoveObject(target)
			},
		})
	}
	return nil
}

// HitTest returns the item id at pt, if the topmost object there is a
// board item.
func (e *Engine) HitTest(pt matchgrid.Point) (string, bool) {
	o := e.pipeline.HitTest(pt)
	if o == nil {
		return "", false
	}
	item, ok := o.Payload.(*render.ContentItem)
	if !ok {
		return "", false
	}
	return item.ItemID, true
}

// SetBackground installs (or replaces) a full-bleed backdrop with an
// optional parallax factor.
func (e *Engine) SetBackground(c color.RGBA, parallaxFactor float64) error {
	if e.backgroundID != "" {
		e.pipeline.RemoveObject(e.backgroundID)
		e.backgroundID = ""
	}
	vp := e.pipeline.Viewport()
	o, err := e.pipeline.Spawn(&render.Background{
		Color:          c,
		ParallaxFactor: parallaxFactor,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	o.Size = matchgrid.Size{Width: vp.Width, Height: vp.Height}
	id, err := e.addSpawned(o)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.backgroundID = id
	return nil
}

// SetParallax forwards a scroll offset to background objects.
func (e *Engine) SetParallax(offset matchgrid.Point) {
	e.pipeline.SetParallax(offset)
}

// ShowToast displays a centered auto-hiding text overlay.
func (e *Engine) ShowToast(text string, d time.Duration) error {
	vp := e.pipeline.Viewport()
	w := vp.Width * 0.6
	o, err := e.pipeline.Spawn(&render.Overlay{
		Text:     text,
		Color:    color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xd0},
		AutoHide: d,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	o.Pos = matchgrid.Point{
		X: (vp.Width - w) / 2,
		Y: (vp.Height - defaultToastHeight) / 2,
	}
	o.Size = matchgrid.Size{Width: w, Height: defaultToastHeight}
	if _, err := e.addSpawned(o); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// SetDebug toggles the diagnostic layer (frame counters, item bounds).
func (e *Engine) SetDebug(enabled bool) error {
	if !enabled {
		if e.debugID != "" {
			e.pipeline.RemoveObject(e.debugID)
			e.debugID = ""
		}
		return nil
	}
	if e.debugID != "" {
		return nil
	}
	o, err := e.pipeline.Spawn(&render.Debug{ShowBounds: true})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	o.Pos = matchgrid.Point{X: 8, Y: 8}
	o.Size = matchgrid.Size{Width: 1, Height: 1}
	id, err := e.addSpawned(o)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.debugID = id
	return nil
}

// Stats returns an aggregated snapshot across collaborators.
func (e *Engine) Stats() Stats {
	return Stats{
		Perf:       e.monitor.Stats(),
		Cache:      e.sprites.Stats(),
		ObjectPool: e.pipeline.ObjectPool().Stats(),
		Objects:    e.pipeline.ObjectCount(),
		Items:      len(e.items),
	}
}

// addSpawned registers a pooled object with the pipeline, recycling it
// when the add is rejected so a failure does not leak an in-use pool
// slot.
func (e *Engine) addSpawned(o *render.Object) (string, error) {
	id, err := e.pipeline.AddObject(o)
	if err != nil {
		e.pipeline.ObjectPool().Release(o)
		return "", err
	}
	return id, nil
}

// refreshDebug rewrites the diagnostic text lines once per tick.
func (e *Engine) refreshDebug() {
	if e.debugID == "" {
		return
	}
	s := e.Stats()
	lines := []string{
		fmt.Sprintf("fps %.1f  heap %.1fMB  degrade %s",
			s.Perf.FPS, s.Perf.HeapMB, s.Perf.Degrade),
		fmt.Sprintf("objects %d  items %d  cache %d/%dKB hit %.0f%%",
			s.Objects, s.Items, s.Cache.Size/1024, s.Cache.MaxBytes/1024,
			s.Cache.HitRate*100),
		fmt.Sprintf("frame drawn %d culled %d errors %d",
			e.lastFrame.ObjectsDrawn, e.lastFrame.ObjectsCulled,
			e.lastFrame.DrawErrors),
	}
	err := e.pipeline.UpdateObject(e.debugID, render.Patch{
		Payload: &render.Debug{ShowBounds: true, Lines: lines},
	})
	if err != nil {
		matchgrid.Logger().Warn("engine: debug refresh failed", "err", err)
	}
}

// motionDuration returns d, or 0 when motion is suppressed by a
// reduced-motion viewport or a degraded fidelity tier.
func (e *Engine) motionDuration(d time.Duration) time.Duration {
	if e.pipeline.Viewport().ReducedMotion || e.degrade >= matchgrid.DegradeReduced {
		return 0
	}
	return d
}

// removeFromOrder drops an item id from the layout order.
func (e *Engine) removeFromOrder(itemID string) {
	for i, id := range e.order {
		if id == itemID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}
