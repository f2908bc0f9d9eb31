package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/matchgrid/matchgrid"
	"github.com/matchgrid/matchgrid/anim"
	"github.com/matchgrid/matchgrid/pool"
)

var t0 = time.Unix(9000, 0)

func testViewport() matchgrid.Viewport {
	return matchgrid.Viewport{Width: 400, Height: 300, Device: matchgrid.Desktop, Orient: matchgrid.Landscape}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(NewSoftwareSurface(400, 300), testViewport(), opts...)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return p
}

func solidSprite(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func addContentItem(t *testing.T, p *Pipeline, id string, x, y, w, h float64) string {
	t.Helper()
	o, err := p.Spawn(&ContentItem{ItemID: id, AssetKey: "asset:" + id})
	if err != nil {
		t.Fatalf("Spawn error = %v", err)
	}
	o.ID = id
	o.Pos = matchgrid.Point{X: x, Y: y}
	o.Size = matchgrid.Size{Width: w, Height: h}
	gotID, err := p.AddObject(o)
	if err != nil {
		t.Fatalf("AddObject error = %v", err)
	}
	return gotID
}

func TestPipeline_AddRemove(t *testing.T) {
	p := newTestPipeline(t)

	id := addContentItem(t, p, "card-1", 10, 10, 50, 70)
	if id != "card-1" {
		t.Errorf("AddObject id = %q, want card-1", id)
	}
	if !p.Has("card-1") {
		t.Error("Has(card-1) = false after add")
	}
	if p.ObjectCount() != 1 {
		t.Errorf("ObjectCount = %d, want 1", p.ObjectCount())
	}

	// Duplicate ids are rejected.
	o2, _ := p.Spawn(&ContentItem{ItemID: "x", AssetKey: "x"})
	o2.ID = "card-1"
	if _, err := p.AddObject(o2); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate AddObject error = %v, want ErrDuplicateID", err)
	}

	if !p.RemoveObject("card-1") {
		t.Error("RemoveObject = false, want true")
	}
	if p.RemoveObject("card-1") {
		t.Error("RemoveObject twice = true, want false")
	}
	if p.Has("card-1") {
		t.Error("Has(card-1) = true after remove")
	}
}

func TestPipeline_GeneratedIDs(t *testing.T) {
	p := newTestPipeline(t)
	o, err := p.Spawn(&Effect{Color: color.RGBA{R: 255, A: 255}, Radius: 5})
	if err != nil {
		t.Fatalf("Spawn error = %v", err)
	}
	id, err := p.AddObject(o)
	if err != nil {
		t.Fatalf("AddObject error = %v", err)
	}
	if id == "" {
		t.Error("AddObject left id empty")
	}
}

func TestPipeline_LayerAssignmentByZ(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "c", 0, 0, 10, 10)

	if got := p.owner["c"]; got != LayerContent {
		t.Errorf("owner layer = %v, want LayerContent", got)
	}

	// A z change into the overlay range moves the object across layers.
	z := 350
	if err := p.UpdateObject("c", Patch{Z: &z}); err != nil {
		t.Fatalf("UpdateObject error = %v", err)
	}
	if got := p.owner["c"]; got != LayerOverlay {
		t.Errorf("owner layer after z move = %v, want LayerOverlay", got)
	}
}

func TestPipeline_UpdateObject(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "c", 0, 0, 10, 10)

	pos := matchgrid.Point{X: 42, Y: 24}
	opacity := 0.5
	if err := p.UpdateObject("c", Patch{Pos: &pos, Opacity: &opacity}); err != nil {
		t.Fatalf("UpdateObject error = %v", err)
	}
	o, _ := p.Lookup("c")
	if o.Pos != pos {
		t.Errorf("Pos = %+v, want %+v", o.Pos, pos)
	}
	if o.Opacity != 0.5 {
		t.Errorf("Opacity = %v, want 0.5", o.Opacity)
	}

	// Cross-kind payload swaps are rejected.
	err := p.UpdateObject("c", Patch{Payload: &Overlay{}})
	if !errors.Is(err, ErrKindMismatch) {
		t.Errorf("cross-kind patch error = %v, want ErrKindMismatch", err)
	}

	if err := p.UpdateObject("ghost", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestPipeline_CoalescedRenderRequest(t *testing.T) {
	p := newTestPipeline(t)
	p.Render(t0) // drain initial full-dirty frame
	if p.RenderRequested() {
		t.Fatal("render pending after drained frame")
	}

	addContentItem(t, p, "c", 0, 0, 10, 10)
	if !p.RenderRequested() {
		t.Error("content update did not request a render")
	}
	p.Render(t0.Add(time.Millisecond))
	if p.RenderRequested() {
		t.Error("Render did not clear the pending request")
	}

	// High-frequency background objects do not trigger extra renders.
	bg, _ := p.Spawn(&Background{Color: color.RGBA{A: 255}, ParallaxFactor: 0.5})
	bg.Size = matchgrid.Size{Width: 400, Height: 300}
	p.Render(t0.Add(2 * time.Millisecond))
	if _, err := p.AddObject(bg); err != nil {
		t.Fatalf("AddObject error = %v", err)
	}
	if p.RenderRequested() {
		t.Error("background add requested an out-of-band render")
	}
}

func TestPipeline_RenderSkipsCleanFrame(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "c", 10, 10, 50, 50)

	first := p.Render(t0)
	if first.Skipped {
		t.Fatal("first frame skipped, want drawn")
	}
	second := p.Render(t0.Add(16 * time.Millisecond))
	if !second.Skipped {
		t.Error("clean frame not skipped")
	}

	// Any mutation makes the next frame draw again.
	v := false
	_ = p.UpdateObject("c", Patch{Visible: &v})
	third := p.Render(t0.Add(32 * time.Millisecond))
	if third.Skipped {
		t.Error("dirty frame skipped")
	}
}

func TestPipeline_AnimationAppliedBeforeDraw(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "c", 0, 0, 50, 50)

	p.Timeline().Add(anim.Animation{
		Target:   "c",
		Tracks:   []anim.Track{{Property: anim.PropX, From: 0, To: 100}},
		Duration: time.Second,
	})
	p.Render(t0)

	stats := p.Render(t0.Add(500 * time.Millisecond))
	if stats.Animated != 1 {
		t.Errorf("Animated = %d, want 1", stats.Animated)
	}
	o, _ := p.Lookup("c")
	if o.Pos.X != 50 {
		t.Errorf("animated X = %v, want 50 (values advanced before draw)", o.Pos.X)
	}
	if stats.Skipped {
		t.Error("animated frame skipped")
	}
}

func TestPipeline_Culling(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "inside", 10, 10, 50, 50)
	addContentItem(t, p, "outside", 5000, 5000, 50, 50)

	stats := p.Render(t0)
	if stats.ObjectsCulled != 1 {
		t.Errorf("ObjectsCulled = %d, want 1", stats.ObjectsCulled)
	}
	if stats.ObjectsDrawn != 1 {
		t.Errorf("ObjectsDrawn = %d, want 1", stats.ObjectsDrawn)
	}
}

func TestPipeline_DrawFailureIsolated(t *testing.T) {
	p := newTestPipeline(t, WithAssetProducer(func(ctx context.Context, key string) (*image.RGBA, int64, error) {
		if key == "asset:bad" {
			panic("decoder exploded")
		}
		return solidSprite(color.RGBA{G: 255, A: 255}, 8, 8), 256, nil
	}))

	addContentItem(t, p, "bad", 10, 10, 40, 40)
	addContentItem(t, p, "good", 100, 10, 40, 40)
	for _, id := range []string{"bad", "good"} {
		revealed := true
		o, _ := p.Lookup(id)
		o.Payload.(*ContentItem).Revealed = revealed
	}

	stats := p.Render(t0)
	if stats.DrawErrors != 1 {
		t.Errorf("DrawErrors = %d, want 1", stats.DrawErrors)
	}
	if stats.ObjectsDrawn != 1 {
		t.Errorf("ObjectsDrawn = %d, want 1 (frame continued)", stats.ObjectsDrawn)
	}
}

func TestPipeline_ProducerFailureDrawsPlaceholder(t *testing.T) {
	calls := 0
	p := newTestPipeline(t, WithAssetProducer(func(ctx context.Context, key string) (*image.RGBA, int64, error) {
		calls++
		return nil, 0, errors.New("404")
	}))

	addContentItem(t, p, "c", 100, 100, 60, 60)
	o, _ := p.Lookup("c")
	o.Payload.(*ContentItem).Revealed = true

	stats := p.Render(t0)
	if stats.DrawErrors != 0 {
		t.Errorf("DrawErrors = %d, want 0 (placeholder is a successful draw)", stats.DrawErrors)
	}
	if calls != 1 {
		t.Fatalf("producer calls = %d, want 1", calls)
	}

	// The placeholder visual landed where the item is.
	got := p.surface.Image().RGBAAt(130, 130)
	if got != placeholderColor {
		t.Errorf("pixel at item center = %v, want placeholder %v", got, placeholderColor)
	}

	// Failure is retried only on re-request: a clean next frame does not
	// re-invoke the producer; a dirtied one does.
	p.Render(t0.Add(time.Millisecond))
	if calls != 1 {
		t.Errorf("producer calls after clean frame = %d, want 1", calls)
	}
	pos := matchgrid.Point{X: 100, Y: 100}
	_ = p.UpdateObject("c", Patch{Pos: &pos})
	p.Render(t0.Add(2 * time.Millisecond))
	if calls != 2 {
		t.Errorf("producer calls after redraw = %d, want 2", calls)
	}
}

func TestPipeline_SpriteCached(t *testing.T) {
	calls := 0
	red := color.RGBA{R: 255, A: 255}
	p := newTestPipeline(t, WithAssetProducer(func(ctx context.Context, key string) (*image.RGBA, int64, error) {
		calls++
		return solidSprite(red, 10, 10), 400, nil
	}))

	addContentItem(t, p, "c", 50, 50, 100, 100)
	o, _ := p.Lookup("c")
	o.Payload.(*ContentItem).Revealed = true

	p.Render(t0)
	pos := matchgrid.Point{X: 50, Y: 50}
	_ = p.UpdateObject("c", Patch{Pos: &pos})
	p.Render(t0.Add(time.Millisecond))

	if calls != 1 {
		t.Errorf("producer calls = %d, want 1 (sprite memoized)", calls)
	}
	if got := p.surface.Image().RGBAAt(100, 100); got != red {
		t.Errorf("pixel at item center = %v, want sprite color %v", got, red)
	}
}

func TestPipeline_HitTest(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "under", 10, 10, 100, 100)

	ov, _ := p.Spawn(&Overlay{Color: color.RGBA{B: 255, A: 255}})
	ov.ID = "over"
	ov.Pos = matchgrid.Point{X: 50, Y: 50}
	ov.Size = matchgrid.Size{Width: 100, Height: 100}
	_, _ = p.AddObject(ov)

	if got := p.HitTest(matchgrid.Point{X: 60, Y: 60}); got == nil || got.ID != "over" {
		t.Errorf("HitTest(60,60) = %v, want topmost overlay", got)
	}
	if got := p.HitTest(matchgrid.Point{X: 20, Y: 20}); got == nil || got.ID != "under" {
		t.Errorf("HitTest(20,20) = %v, want content item", got)
	}
	if got := p.HitTest(matchgrid.Point{X: 390, Y: 290}); got != nil {
		t.Errorf("HitTest(miss) = %v, want nil", got)
	}
}

func TestPipeline_OverlayAutoHide(t *testing.T) {
	p := newTestPipeline(t)
	ov, _ := p.Spawn(&Overlay{Text: "Match!", AutoHide: 100 * time.Millisecond})
	ov.ID = "toast"
	ov.Size = matchgrid.Size{Width: 100, Height: 30}
	_, _ = p.AddObject(ov)

	p.Render(t0) // arms the event
	if !p.Has("toast") {
		t.Fatal("overlay removed before auto-hide elapsed")
	}
	p.Render(t0.Add(50 * time.Millisecond))
	if !p.Has("toast") {
		t.Fatal("overlay removed early")
	}
	p.Render(t0.Add(150 * time.Millisecond))
	if p.Has("toast") {
		t.Error("overlay not removed after auto-hide elapsed")
	}
}

func TestPipeline_DegradeMinimalDropsEffects(t *testing.T) {
	p := newTestPipeline(t)
	fx, _ := p.Spawn(&Effect{Color: color.RGBA{R: 255, A: 255}, Radius: 30})
	fx.ID = "burst"
	fx.Pos = matchgrid.Point{X: 170, Y: 120}
	fx.Size = matchgrid.Size{Width: 60, Height: 60}
	_, _ = p.AddObject(fx)

	p.Render(t0)
	if got := p.surface.Image().RGBAAt(200, 150); got.R == 0 {
		t.Fatalf("effect not drawn at full fidelity, pixel = %v", got)
	}

	p.SetDegrade(matchgrid.DegradeMinimal)
	p.Render(t0.Add(time.Millisecond))
	if got := p.surface.Image().RGBAAt(200, 150); got.R != 0 {
		t.Errorf("effect drawn in minimal mode, pixel = %v", got)
	}
}

func TestPipeline_SetSurfaceResize(t *testing.T) {
	p := newTestPipeline(t)
	addContentItem(t, p, "c", 10, 10, 50, 50)
	p.Render(t0)

	// Surface loss/recovery hands the pipeline a fresh, larger handle.
	fresh := NewSoftwareSurface(800, 600)
	p.SetSurface(fresh)
	p.SetViewport(matchgrid.Viewport{Width: 800, Height: 600, Device: matchgrid.Desktop})

	stats := p.Render(t0.Add(time.Millisecond))
	if stats.Skipped {
		t.Error("frame after surface replacement skipped, want full redraw")
	}
	if got := fresh.Image().RGBAAt(30, 30); got.A == 0 {
		t.Error("object not redrawn onto the replacement surface")
	}
}

func TestPipeline_ClearRecyclesObjects(t *testing.T) {
	op, err := pool.New(pool.Config[*Object]{
		Name:    "objects",
		Initial: 2,
		Max:     16,
		New:     func() *Object { o := &Object{}; o.reset(); return o },
		Reset:   func(o *Object) { o.reset() },
	})
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPipeline(t, WithObjectPool(op))

	for i := 0; i < 5; i++ {
		addContentItem(t, p, string(rune('a'+i)), float64(i)*10, 0, 8, 8)
	}
	if got := op.Stats().InUse; got != 5 {
		t.Fatalf("InUse = %d, want 5", got)
	}

	p.Clear()
	if got := op.Stats().InUse; got != 0 {
		t.Errorf("InUse after Clear = %d, want 0", got)
	}
	if p.ObjectCount() != 0 {
		t.Errorf("ObjectCount after Clear = %d, want 0", p.ObjectCount())
	}
}

func TestPipeline_PoolExhaustionIsRecoverable(t *testing.T) {
	op, err := pool.New(pool.Config[*Object]{
		Name:    "tiny",
		Initial: 1,
		Max:     1,
		New:     func() *Object { o := &Object{}; o.reset(); return o },
		Reset:   func(o *Object) { o.reset() },
	})
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPipeline(t, WithObjectPool(op))

	addContentItem(t, p, "only", 0, 0, 10, 10)
	if _, err := p.Spawn(&ContentItem{}); !errors.Is(err, pool.ErrExhausted) {
		t.Errorf("Spawn at pool max error = %v, want pool.ErrExhausted", err)
	}

	// The frame still renders with the objects that exist.
	if stats := p.Render(t0); stats.Skipped {
		t.Error("frame skipped despite existing objects")
	}
}
