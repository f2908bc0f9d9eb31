package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"testing"
	"time"

	"github.com/matchgrid/matchgrid"
	"github.com/matchgrid/matchgrid/perf"
	"github.com/matchgrid/matchgrid/render"
)

var start = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func testViewport(w, h float64) matchgrid.Viewport {
	return matchgrid.Viewport{
		Width:      w,
		Height:     h,
		Device:     matchgrid.Desktop,
		Orient:     matchgrid.Landscape,
		PixelRatio: 1,
	}
}

func solidProducer(c color.RGBA) render.AssetProducer {
	return func(ctx context.Context, assetKey string) (*image.RGBA, int64, error) {
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
		}
		return img, int64(len(img.Pix)), nil
	}
}

func newTestEngine(t *testing.T, vp matchgrid.Viewport) *Engine {
	t.Helper()
	surface := render.NewSoftwareSurface(int(vp.Width), int(vp.Height))
	e, err := New(surface, vp,
		WithAssetProducer(solidProducer(color.RGBA{R: 0xff, A: 0xff})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func boardItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:       fmt.Sprintf("item-%02d", i),
			AssetKey: fmt.Sprintf("asset-%d", i%6),
			Category: fmt.Sprintf("cat-%d", i%3),
		}
	}
	return items
}

func TestBoardEndToEnd(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetItems(boardItems(24)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}

	g := e.Grid()
	if !(g.Rows == 4 && g.Cols == 6) && !(g.Rows == 6 && g.Cols == 4) {
		t.Fatalf("grid = %dx%d, want 4x6 or 6x4", g.Rows, g.Cols)
	}
	if g.Efficiency != 1.0 {
		t.Fatalf("efficiency = %f, want 1.0", g.Efficiency)
	}
	if s := e.Stats(); s.Items != 24 || s.Objects != 24 {
		t.Fatalf("stats = %+v, want 24 items and objects", s)
	}

	// First tick starts the fade-in clocks; the second completes them.
	e.Tick(start)
	stats := e.Tick(start.Add(DefaultMoveDuration))
	if stats.Skipped {
		t.Fatal("frame with animated items was skipped")
	}

	o, ok := e.pipeline.Lookup(e.items["item-00"])
	if !ok {
		t.Fatal("item-00 object missing")
	}
	if o.Opacity != 1 {
		t.Fatalf("opacity after fade-in = %f, want 1", o.Opacity)
	}
	if o.Pos != g.Positions[0] {
		t.Fatalf("pos = %+v, want %+v", o.Pos, g.Positions[0])
	}

	// The first cell's center must hit the first item.
	c := g.CellRect(0).Center()
	id, ok := e.HitTest(c)
	if !ok || id != "item-00" {
		t.Fatalf("HitTest(%+v) = %q, %v; want item-00", c, id, ok)
	}
	if _, ok := e.HitTest(matchgrid.Point{X: -50, Y: -50}); ok {
		t.Fatal("HitTest outside the board reported a hit")
	}
}

func TestResizeRelayoutsWithAnimation(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetItems(boardItems(8)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	e.Tick(start)
	now := start.Add(DefaultMoveDuration)
	e.Tick(now)

	vp := testViewport(800, 600)
	if err := e.Resize(render.NewSoftwareSurface(800, 600), vp); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	// Arm the move animations, then run them to completion.
	now = now.Add(16 * time.Millisecond)
	e.Tick(now)
	e.Tick(now.Add(DefaultMoveDuration))

	g := e.Grid()
	for i, itemID := range e.order {
		o, ok := e.pipeline.Lookup(e.items[itemID])
		if !ok {
			t.Fatalf("object for %s missing", itemID)
		}
		if o.Pos != g.Positions[i] {
			t.Fatalf("%s pos = %+v, want %+v", itemID, o.Pos, g.Positions[i])
		}
	}
}

func TestShuffleMovesItemsToNewCells(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetItems(boardItems(9)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	e.Tick(start)
	now := start.Add(DefaultMoveDuration)
	e.Tick(now)

	before := e.Grid()
	if err := e.Shuffle(rand.New(rand.NewSource(7))); err != nil {
		t.Fatalf("Shuffle: %v", err)
	}
	after := e.Grid()
	if after.Rows != before.Rows || after.Cols != before.Cols {
		t.Fatalf("grid shape changed: %dx%d -> %dx%d",
			before.Rows, before.Cols, after.Rows, after.Cols)
	}

	now = now.Add(16 * time.Millisecond)
	e.Tick(now)
	e.Tick(now.Add(DefaultMoveDuration))
	for i, itemID := range e.order {
		o, _ := e.pipeline.Lookup(e.items[itemID])
		if o.Pos != after.Positions[i] {
			t.Fatalf("%s pos = %+v, want %+v", itemID, o.Pos, after.Positions[i])
		}
	}
}

func TestRevealFlipsPayload(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetItems(boardItems(4)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}

	if err := e.Reveal("item-02", true); err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	o, _ := e.pipeline.Lookup(e.items["item-02"])
	if item := o.Payload.(*render.ContentItem); !item.Revealed {
		t.Fatal("payload not revealed")
	}

	// Revealing again is a no-op; unknown ids are an error.
	if err := e.Reveal("item-02", true); err != nil {
		t.Fatalf("repeat Reveal: %v", err)
	}
	if err := e.Reveal("nope", true); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("Reveal unknown = %v, want ErrUnknownItem", err)
	}
}

func TestRemoveItemsFadesThenRecycles(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetItems(boardItems(4)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	e.Tick(start)
	now := start.Add(DefaultMoveDuration)
	e.Tick(now)

	if err := e.RemoveItems("item-01"); err != nil {
		t.Fatalf("RemoveItems: %v", err)
	}
	// The item leaves the board immediately; the render object outlives
	// it for the duration of the fade.
	if s := e.Stats(); s.Items != 3 || s.Objects != 4 {
		t.Fatalf("stats during fade = %+v, want 3 items, 4 objects", s)
	}

	now = now.Add(16 * time.Millisecond)
	e.Tick(now)
	e.Tick(now.Add(DefaultFadeDuration))
	if s := e.Stats(); s.Objects != 3 {
		t.Fatalf("objects after fade = %d, want 3", s.Objects)
	}

	if err := e.RemoveItems("item-01"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("RemoveItems twice = %v, want ErrUnknownItem", err)
	}
}

func TestReducedMotionSnaps(t *testing.T) {
	vp := testViewport(1200, 800)
	vp.ReducedMotion = true
	e := newTestEngine(t, vp)
	if err := e.SetItems(boardItems(6)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}

	// Zero-duration animations complete on the very first tick.
	e.Tick(start)
	g := e.Grid()
	for i, itemID := range e.order {
		o, _ := e.pipeline.Lookup(e.items[itemID])
		if o.Opacity != 1 || o.Pos != g.Positions[i] {
			t.Fatalf("%s not settled after one tick: opacity %f pos %+v",
				itemID, o.Opacity, o.Pos)
		}
	}
	if n := e.timeline.Active(); n != 0 {
		t.Fatalf("active animations = %d, want 0", n)
	}

	// Removal is immediate without motion.
	if err := e.RemoveItems("item-00"); err != nil {
		t.Fatalf("RemoveItems: %v", err)
	}
	if s := e.Stats(); s.Objects != 5 {
		t.Fatalf("objects = %d, want 5", s.Objects)
	}
}

func TestSustainedPressureDegradesBoard(t *testing.T) {
	vp := testViewport(1200, 800)
	surface := render.NewSoftwareSurface(1200, 800)
	mon := perf.New(
		perf.WithThresholds(perf.Thresholds{TargetFPS: 60}),
		perf.WithSustainSamples(3),
	)
	e, err := New(surface, vp,
		WithAssetProducer(solidProducer(color.RGBA{A: 0xff})),
		WithMonitor(mon),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetItems(boardItems(12)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}

	// Sustained 100ms frames (10 FPS) push the monitor past its breach
	// threshold once half its window is populated.
	now := start
	for i := 0; i < perf.WindowSize; i++ {
		now = now.Add(100 * time.Millisecond)
		e.Tick(now)
	}

	if mon.Degrade() < matchgrid.DegradeReduced {
		t.Fatalf("monitor degrade = %v, want at least %v",
			mon.Degrade(), matchgrid.DegradeReduced)
	}
	if e.degrade != mon.Degrade() {
		t.Fatalf("engine degrade %v out of sync with monitor %v",
			e.degrade, mon.Degrade())
	}
}

func TestRejectedAddRecyclesSpawnedObject(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetItems(boardItems(1)); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	before := e.pipeline.ObjectPool().Stats().InUse

	// Force a duplicate-id rejection; the spawned object must go back
	// to the pool instead of leaking an in-use slot.
	o, err := e.pipeline.Spawn(&render.ContentItem{ItemID: "dup"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	o.ID = e.items["item-00"]
	if _, err := e.addSpawned(o); !errors.Is(err, render.ErrDuplicateID) {
		t.Fatalf("addSpawned = %v, want ErrDuplicateID", err)
	}

	if got := e.pipeline.ObjectPool().Stats().InUse; got != before {
		t.Fatalf("pool InUse = %d after rejected add, want %d", got, before)
	}
}

func TestToastAutoHides(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.ShowToast("match!", 100*time.Millisecond); err != nil {
		t.Fatalf("ShowToast: %v", err)
	}
	if s := e.Stats(); s.Objects != 1 {
		t.Fatalf("objects = %d, want 1", s.Objects)
	}

	e.Tick(start) // arms the auto-hide event
	e.Tick(start.Add(150 * time.Millisecond))
	if s := e.Stats(); s.Objects != 0 {
		t.Fatalf("objects after auto-hide = %d, want 0", s.Objects)
	}
}

func TestSetBackgroundReplaces(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetBackground(color.RGBA{R: 0x20, A: 0xff}, 0); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	first := e.backgroundID
	if err := e.SetBackground(color.RGBA{B: 0x20, A: 0xff}, 0.2); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	if e.backgroundID == first {
		t.Fatal("background id unchanged after replacement")
	}
	if s := e.Stats(); s.Objects != 1 {
		t.Fatalf("objects = %d, want 1", s.Objects)
	}
}

func TestDebugOverlayRefreshes(t *testing.T) {
	e := newTestEngine(t, testViewport(1200, 800))
	if err := e.SetDebug(true); err != nil {
		t.Fatalf("SetDebug: %v", err)
	}
	e.Tick(start)

	o, ok := e.pipeline.Lookup(e.debugID)
	if !ok {
		t.Fatal("debug object missing")
	}
	dbg := o.Payload.(*render.Debug)
	if len(dbg.Lines) == 0 {
		t.Fatal("debug lines empty after tick")
	}

	if err := e.SetDebug(false); err != nil {
		t.Fatalf("SetDebug(false): %v", err)
	}
	if e.debugID != "" || e.pipeline.ObjectCount() != 0 {
		t.Fatal("debug object not removed")
	}
}
