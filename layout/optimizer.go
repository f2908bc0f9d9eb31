package layout

import (
	"errors"
	"math"

	"github.com/matchgrid/matchgrid"
)

// ErrNoItems is returned when Compute is called with an item count < 1.
var ErrNoItems = errors.New("layout: item count must be at least 1")

// Option configures a single Compute call.
type Option func(*options)

type options struct {
	params  *Params
	degrade matchgrid.DegradeLevel
}

// WithParams overrides the per-device default parameters.
func WithParams(p Params) Option {
	return func(o *options) {
		o.params = &p
	}
}

// WithDegrade applies a degradation level to the layout budgets.
// Reduced and Minimal tighten the maximum item size and padding.
func WithDegrade(level matchgrid.DegradeLevel) Option {
	return func(o *options) {
		o.degrade = level
	}
}

// candidate is one (cols, rows) configuration under evaluation.
type candidate struct {
	cols, rows int
	w, h       float64
	score      float64
}

// Compute returns the best-fit grid layout for itemCount items in the
// given viewport. It never fails for feasibility reasons: when no
// candidate validates, a forced fallback configuration is returned with
// Grid.Forced set. The only error is an item count below 1.
//
// Compute is pure and deterministic: identical inputs yield identical
// output, with first-seen candidates winning score ties.
func Compute(itemCount int, vp matchgrid.Viewport, opts ...Option) (Grid, error) {
	if itemCount < 1 {
		return Grid{}, ErrNoItems
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	params := ParamsFor(vp.Device, vp.Orient)
	if o.params != nil {
		params = *o.params
	}
	params = params.applyDegrade(o.degrade)

	weights := params.Weights
	radius := params.SearchRadius
	if vp.IsExtreme() {
		weights = extremeWeights(weights)
		radius += 2
	}

	strategy := SelectStrategy(vp.Device, vp.Orient)
	availW := vp.Width - 2*params.Padding
	availH := vp.Height - 2*params.Padding

	best, ok := searchBest(itemCount, strategy, radius, availW, availH, vp.AspectRatio(), params, weights)
	if !ok {
		return forcedFallback(itemCount, vp, params, strategy), nil
	}

	g := Grid{
		Rows:       best.rows,
		Cols:       best.cols,
		ItemCount:  itemCount,
		ItemWidth:  best.w,
		ItemHeight: best.h,
		Gap:        params.Gap,
		Efficiency: float64(itemCount) / float64(best.rows*best.cols),
		Score:      best.score,
		Strategy:   strategy,
	}
	g.Positions = placeItems(g, vp, params)
	return g, nil
}

// searchBest enumerates candidates for the strategy and returns the
// highest-scoring valid one. The enumeration order is fixed per strategy
// so that first-seen wins ties deterministically.
func searchBest(n int, strategy Strategy, radius int, availW, availH, vpAspect float64, params Params, weights Weights) (candidate, bool) {
	base := int(math.Round(math.Sqrt(float64(n))))
	if base < 1 {
		base = 1
	}

	var best candidate
	found := false
	try := func(cols, rows int) {
		if cols < 1 || rows < 1 || cols*rows < n {
			return
		}
		w, h, ok := fitItemSize(cols, rows, availW, availH, params)
		if !ok {
			return
		}
		c := candidate{cols: cols, rows: rows, w: w, h: h}
		c.score = scoreCandidate(c, n, vpAspect, params, weights)
		if !found || c.score > best.score {
			best = c
			found = true
		}
	}

	switch strategy {
	case RowsFirst:
		// Portrait search: more rows first, columns derived.
		for rows := base + radius; rows >= base-radius; rows-- {
			if rows < 1 {
				break
			}
			try(ceilDiv(n, rows), rows)
		}
	case ColumnsFirst:
		// Landscape search: wider grids first.
		for cols := base + radius; cols >= base-radius; cols-- {
			if cols < 1 {
				break
			}
			try(cols, ceilDiv(n, cols))
		}
	case Balanced:
		fallthrough
	default:
		for cols := base - radius; cols <= base+radius; cols++ {
			if cols < 1 {
				continue
			}
			try(cols, ceilDiv(n, cols))
		}
	}
	return best, found
}

// fitItemSize finds the largest item size for a cols x rows grid inside
// the available area, holding params.Aspect fixed.
//
// It starts from the closed-form fit-to-cell estimate, then runs the
// iterative shrink loop: while either axis overflows, decrement the
// offending dimension by ShrinkStep (clamped to the minimum) and retest.
// The iteration cap is a safety bound; the closed-form seed means the
// loop converges almost immediately in practice.
func fitItemSize(cols, rows int, availW, availH float64, params Params) (w, h float64, ok bool) {
	if availW <= 0 || availH <= 0 {
		return 0, 0, false
	}
	cellW := (availW - float64(cols-1)*params.Gap) / float64(cols)
	cellH := (availH - float64(rows-1)*params.Gap) / float64(rows)
	if cellW <= 0 || cellH <= 0 {
		return 0, 0, false
	}

	w = math.Min(cellW, cellH*params.Aspect)
	w = math.Min(w, params.MaxItemWidth)
	h = w / params.Aspect

	minW := params.MinItemWidth
	minH := minW / params.Aspect
	for i := 0; i < maxShrinkIterations; i++ {
		gridW := float64(cols)*w + float64(cols-1)*params.Gap
		gridH := float64(rows)*h + float64(rows-1)*params.Gap
		if gridW <= availW && gridH <= availH {
			break
		}
		if gridW > availW {
			w = math.Max(w-params.ShrinkStep, minW)
			h = w / params.Aspect
		} else {
			h = math.Max(h-params.ShrinkStep, minH)
			w = h * params.Aspect
		}
		if w <= minW && h <= minH {
			break
		}
	}

	gridW := float64(cols)*w + float64(cols-1)*params.Gap
	gridH := float64(rows)*h + float64(rows-1)*params.Gap
	if gridW > availW || gridH > availH || w < minW {
		return 0, 0, false
	}
	return w, h, true
}

// scoreCandidate computes the weighted score of a valid candidate.
func scoreCandidate(c candidate, n int, vpAspect float64, params Params, weights Weights) float64 {
	sizeRatio := c.w / params.MaxItemWidth
	if sizeRatio > 1 {
		sizeRatio = 1
	}
	efficiency := float64(n) / float64(c.rows*c.cols)

	gridW := float64(c.cols)*c.w + float64(c.cols-1)*params.Gap
	gridH := float64(c.rows)*c.h + float64(c.rows-1)*params.Gap
	closeness := 0.0
	if gridH > 0 && vpAspect > 0 {
		gridAspect := gridW / gridH
		closeness = math.Min(gridAspect, vpAspect) / math.Max(gridAspect, vpAspect)
	}

	return weights.Size*sizeRatio + weights.Efficiency*efficiency + weights.Aspect*closeness
}

// forcedFallback builds the ceil(sqrt(n)) configuration at minimum item
// size. This path never fails; it only logs.
func forcedFallback(n int, vp matchgrid.Viewport, params Params, strategy Strategy) Grid {
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	if cols < 1 {
		cols = 1
	}
	rows := ceilDiv(n, cols)

	g := Grid{
		Rows:       rows,
		Cols:       cols,
		ItemCount:  n,
		ItemWidth:  params.MinItemWidth,
		ItemHeight: params.MinItemWidth / params.Aspect,
		Gap:        params.Gap,
		Efficiency: float64(n) / float64(rows*cols),
		Strategy:   strategy,
		Forced:     true,
	}
	g.Positions = placeItems(g, vp, params)

	matchgrid.Logger().Warn("layout: no candidate fit viewport, forcing fallback grid",
		"items", n,
		"cols", cols,
		"rows", rows,
		"viewportW", vp.Width,
		"viewportH", vp.Height,
		"device", vp.Device.String(),
	)
	return g
}

// placeItems computes row-major item positions. The grid block is
// centered in the padded viewport, and an incomplete final row is
// horizontally centered against the full grid width.
func placeItems(g Grid, vp matchgrid.Viewport, params Params) []matchgrid.Point {
	gridW := float64(g.Cols)*g.ItemWidth + float64(g.Cols-1)*g.Gap
	gridH := float64(g.Rows)*g.ItemHeight + float64(g.Rows-1)*g.Gap

	originX := (vp.Width - gridW) / 2
	if originX < params.Padding {
		originX = params.Padding
	}
	originY := (vp.Height - gridH) / 2
	if originY < params.Padding {
		originY = params.Padding
	}

	positions := make([]matchgrid.Point, 0, g.ItemCount)
	for row := 0; row < g.Rows && len(positions) < g.ItemCount; row++ {
		inRow := g.Cols
		if remaining := g.ItemCount - row*g.Cols; remaining < inRow {
			inRow = remaining
		}
		rowW := float64(inRow)*g.ItemWidth + float64(inRow-1)*g.Gap
		rowX := originX + (gridW-rowW)/2
		y := originY + float64(row)*(g.ItemHeight+g.Gap)
		for i := 0; i < inRow; i++ {
			positions = append(positions, matchgrid.Point{
				X: rowX + float64(i)*(g.ItemWidth+g.Gap),
				Y: y,
			})
		}
	}
	return positions
}

// ceilDiv returns ceil(a/b) for positive integers.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
