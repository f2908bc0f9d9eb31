package layout

import (
	"math"
	"reflect"
	"testing"

	"github.com/matchgrid/matchgrid"
)

func desktopViewport(w, h float64) matchgrid.Viewport {
	return matchgrid.Viewport{Width: w, Height: h, Device: matchgrid.Desktop, Orient: matchgrid.Landscape}
}

func TestCompute_NoItems(t *testing.T) {
	_, err := Compute(0, desktopViewport(800, 600))
	if err != ErrNoItems {
		t.Errorf("Compute(0) error = %v, want ErrNoItems", err)
	}
	_, err = Compute(-3, desktopViewport(800, 600))
	if err != ErrNoItems {
		t.Errorf("Compute(-3) error = %v, want ErrNoItems", err)
	}
}

func TestCompute_Invariants(t *testing.T) {
	viewports := []struct {
		name string
		vp   matchgrid.Viewport
	}{
		{"desktop wide", desktopViewport(1200, 800)},
		{"desktop square", desktopViewport(900, 900)},
		{"tablet landscape", matchgrid.Viewport{Width: 1024, Height: 768, Device: matchgrid.Tablet, Orient: matchgrid.Landscape}},
		{"mobile portrait", matchgrid.Viewport{Width: 360, Height: 640, Device: matchgrid.Mobile, Orient: matchgrid.Portrait}},
		{"mobile landscape", matchgrid.Viewport{Width: 640, Height: 360, Device: matchgrid.Mobile, Orient: matchgrid.Landscape}},
		{"ultrawide", desktopViewport(2560, 720)},
	}

	for _, tv := range viewports {
		t.Run(tv.name, func(t *testing.T) {
			params := ParamsFor(tv.vp.Device, tv.vp.Orient)
			for n := 1; n <= 36; n++ {
				g, err := Compute(n, tv.vp)
				if err != nil {
					t.Fatalf("Compute(%d) error = %v", n, err)
				}
				if g.Rows*g.Cols < n {
					t.Errorf("Compute(%d): rows*cols = %d*%d < %d", n, g.Rows, g.Cols, n)
				}
				if g.Efficiency <= 0 || g.Efficiency > 1 {
					t.Errorf("Compute(%d): efficiency = %v, want in (0,1]", n, g.Efficiency)
				}
				if g.ItemWidth < params.MinItemWidth {
					t.Errorf("Compute(%d): item width %v below minimum %v", n, g.ItemWidth, params.MinItemWidth)
				}
				if len(g.Positions) != n {
					t.Errorf("Compute(%d): %d positions, want %d", n, len(g.Positions), n)
				}
			}
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	vp := desktopViewport(1333, 777)
	for n := 1; n <= 30; n += 7 {
		a, err := Compute(n, vp)
		if err != nil {
			t.Fatalf("Compute(%d) error = %v", n, err)
		}
		b, err := Compute(n, vp)
		if err != nil {
			t.Fatalf("Compute(%d) error = %v", n, err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Compute(%d) not deterministic:\n first = %+v\nsecond = %+v", n, a, b)
		}
	}
}

func TestCompute_EfficiencyBound(t *testing.T) {
	// 12 items on a desktop square viewport must pick an efficient grid
	// (3x4 or 4x3), not a wasteful one like 2x7.
	g, err := Compute(12, desktopViewport(900, 900))
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	if g.Efficiency < 0.75 {
		t.Errorf("efficiency = %v (%dx%d), want >= 0.75", g.Efficiency, g.Rows, g.Cols)
	}
}

func TestCompute_EndToEnd24Items(t *testing.T) {
	vp := desktopViewport(1200, 800)
	params := ParamsFor(vp.Device, vp.Orient)

	g, err := Compute(24, vp)
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	if !(g.Rows == 4 && g.Cols == 6) && !(g.Rows == 6 && g.Cols == 4) {
		t.Errorf("grid = %dx%d, want 4x6 or 6x4", g.Rows, g.Cols)
	}
	if g.Efficiency != 1.0 {
		t.Errorf("efficiency = %v, want 1.0", g.Efficiency)
	}
	if g.ItemWidth < params.MinItemWidth || g.ItemWidth > params.MaxItemWidth {
		t.Errorf("item width %v outside [%v, %v]", g.ItemWidth, params.MinItemWidth, params.MaxItemWidth)
	}

	bounds := g.Bounds()
	padded := vp.Bounds().Inset(params.Padding)
	const eps = 1e-6
	if bounds.MinX < padded.MinX-eps || bounds.MinY < padded.MinY-eps ||
		bounds.MaxX > padded.MaxX+eps || bounds.MaxY > padded.MaxY+eps {
		t.Errorf("layout bounds %+v exceed padded viewport %+v", bounds, padded)
	}
}

func TestCompute_ForcedFallback(t *testing.T) {
	// A viewport far too small for 40 items at minimum size cannot
	// validate any candidate; Compute must degrade, not fail.
	g, err := Compute(40, desktopViewport(120, 90))
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	if !g.Forced {
		t.Error("Forced = false, want true for infeasible viewport")
	}
	if g.Rows*g.Cols < 40 {
		t.Errorf("fallback rows*cols = %d*%d < 40", g.Rows, g.Cols)
	}
	if len(g.Positions) != 40 {
		t.Errorf("fallback positions = %d, want 40", len(g.Positions))
	}
	params := ParamsFor(matchgrid.Desktop, matchgrid.Landscape)
	if g.ItemWidth != params.MinItemWidth {
		t.Errorf("fallback item width = %v, want minimum %v", g.ItemWidth, params.MinItemWidth)
	}
}

func TestCompute_LastRowCentered(t *testing.T) {
	vp := desktopViewport(1000, 800)
	g, err := Compute(7, vp)
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	if g.ItemCount%g.Cols == 0 {
		t.Skipf("7 items filled %dx%d evenly; nothing to center", g.Rows, g.Cols)
	}

	// The horizontal center of the incomplete final row must match the
	// horizontal center of a full row.
	firstRow := g.Positions[:g.Cols]
	fullCenter := (firstRow[0].X + firstRow[len(firstRow)-1].X + g.ItemWidth) / 2

	lastStart := (g.Rows - 1) * g.Cols
	lastRow := g.Positions[lastStart:]
	lastCenter := (lastRow[0].X + lastRow[len(lastRow)-1].X + g.ItemWidth) / 2

	if math.Abs(fullCenter-lastCenter) > 1e-6 {
		t.Errorf("last row center = %v, full row center = %v", lastCenter, fullCenter)
	}
	if lastRow[0].X <= firstRow[0].X {
		t.Errorf("incomplete last row starts at %v, want indented past %v", lastRow[0].X, firstRow[0].X)
	}
}

func TestCompute_DegradeTightensBudgets(t *testing.T) {
	vp := desktopViewport(1200, 800)
	full, err := Compute(4, vp)
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	reduced, err := Compute(4, vp, WithDegrade(matchgrid.DegradeReduced))
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	if reduced.ItemWidth > full.ItemWidth {
		t.Errorf("degraded item width %v > full-fidelity width %v", reduced.ItemWidth, full.ItemWidth)
	}

	params := ParamsFor(vp.Device, vp.Orient)
	if reduced.ItemWidth > params.MaxItemWidth*0.85+1e-9 {
		t.Errorf("degraded item width %v exceeds reduced budget %v", reduced.ItemWidth, params.MaxItemWidth*0.85)
	}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name   string
		device matchgrid.DeviceClass
		orient matchgrid.Orientation
		want   Strategy
	}{
		{"mobile portrait", matchgrid.Mobile, matchgrid.Portrait, RowsFirst},
		{"mobile landscape", matchgrid.Mobile, matchgrid.Landscape, ColumnsFirst},
		{"tablet portrait", matchgrid.Tablet, matchgrid.Portrait, Balanced},
		{"desktop landscape", matchgrid.Desktop, matchgrid.Landscape, Balanced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectStrategy(tt.device, tt.orient); got != tt.want {
				t.Errorf("SelectStrategy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrid_CellRect(t *testing.T) {
	g, err := Compute(6, desktopViewport(1200, 800))
	if err != nil {
		t.Fatalf("Compute error = %v", err)
	}
	r := g.CellRect(0)
	if r.Width() != g.ItemWidth || r.Height() != g.ItemHeight {
		t.Errorf("CellRect(0) = %vx%v, want %vx%v", r.Width(), r.Height(), g.ItemWidth, g.ItemHeight)
	}
	if !g.CellRect(-1).IsEmpty() || !g.CellRect(6).IsEmpty() {
		t.Error("out-of-range CellRect should be empty")
	}
}
