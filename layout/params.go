package layout

import (
	"github.com/matchgrid/matchgrid"
)

// Default layout configuration constants.
const (
	// DefaultAspect is the item width/height ratio (card-like tiles).
	DefaultAspect = 0.75

	// DefaultShrinkStep is the pixel decrement applied per shrink
	// iteration when a candidate overflows the padded viewport.
	DefaultShrinkStep = 2.0

	// maxShrinkIterations bounds the shrink loop. The loop normally
	// converges in a handful of steps because it starts from the
	// closed-form fit-to-cell estimate.
	maxShrinkIterations = 200
)

// Weights are the scoring weights for candidate grids.
// They should sum to roughly 1.0 but are not normalized.
type Weights struct {
	// Size weights the item size relative to the configured maximum.
	Size float64

	// Efficiency weights itemCount/(rows*cols).
	Efficiency float64

	// Aspect weights how closely the grid aspect ratio tracks the
	// viewport aspect ratio.
	Aspect float64
}

// Params holds the per-device layout configuration.
// All dimensions are in viewport units.
type Params struct {
	// Padding is the margin between the viewport edge and the grid.
	Padding float64

	// Gap is the spacing between adjacent items.
	Gap float64

	// MinItemWidth is the smallest allowed item width. Heights follow
	// from Aspect.
	MinItemWidth float64

	// MaxItemWidth is the largest allowed item width.
	MaxItemWidth float64

	// Aspect is the item width/height ratio, held fixed during sizing.
	Aspect float64

	// SearchRadius is the half-width of the candidate window around
	// sqrt(itemCount).
	SearchRadius int

	// ShrinkStep is the decrement per shrink iteration.
	ShrinkStep float64

	// Weights are the candidate scoring weights.
	Weights Weights
}

// ParamsFor returns the default parameters for a device class and
// orientation. The dispatch is exhaustive over the closed enums; unknown
// values fall back to desktop parameters.
func ParamsFor(device matchgrid.DeviceClass, orient matchgrid.Orientation) Params {
	switch device {
	case matchgrid.Mobile:
		p := Params{
			Padding:      12,
			Gap:          6,
			MinItemWidth: 40,
			MaxItemWidth: 110,
			Aspect:       DefaultAspect,
			SearchRadius: 2,
			ShrinkStep:   DefaultShrinkStep,
			Weights:      Weights{Size: 0.4, Efficiency: 0.4, Aspect: 0.2},
		}
		if orient == matchgrid.Portrait {
			// Portrait phones favor narrow grids; a tighter window
			// keeps the rows-first search cheap.
			p.SearchRadius = 1
		}
		return p
	case matchgrid.Tablet:
		return Params{
			Padding:      20,
			Gap:          10,
			MinItemWidth: 56,
			MaxItemWidth: 160,
			Aspect:       DefaultAspect,
			SearchRadius: 2,
			ShrinkStep:   DefaultShrinkStep,
			Weights:      Weights{Size: 0.4, Efficiency: 0.4, Aspect: 0.2},
		}
	case matchgrid.Desktop:
		fallthrough
	default:
		return Params{
			Padding:      24,
			Gap:          12,
			MinItemWidth: 64,
			MaxItemWidth: 200,
			Aspect:       DefaultAspect,
			SearchRadius: 2,
			ShrinkStep:   DefaultShrinkStep,
			Weights:      Weights{Size: 0.4, Efficiency: 0.4, Aspect: 0.2},
		}
	}
}

// applyDegrade tightens size and padding budgets for a degradation level.
// The returned Params are a modified copy; the receiver is unchanged.
func (p Params) applyDegrade(level matchgrid.DegradeLevel) Params {
	switch level {
	case matchgrid.DegradeReduced:
		p.MaxItemWidth *= 0.85
		p.Padding *= 0.9
	case matchgrid.DegradeMinimal:
		p.MaxItemWidth *= 0.7
		p.Padding *= 0.8
	}
	if p.MaxItemWidth < p.MinItemWidth {
		p.MaxItemWidth = p.MinItemWidth
	}
	return p
}

// extremeWeights shifts scoring toward size and efficiency for extreme
// viewport aspect ratios, where chasing aspect closeness produces
// degenerate single-row or single-column grids.
func extremeWeights(w Weights) Weights {
	return Weights{
		Size:       w.Size + 0.05,
		Efficiency: w.Efficiency + 0.05,
		Aspect:     w.Aspect - 0.1,
	}
}
