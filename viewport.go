package matchgrid

// unknownStr is the fallback name for out-of-range enum values.
const unknownStr = "Unknown"

// DeviceClass identifies the broad category of display device.
// It is supplied by the external environment collaborator; this core never
// performs device detection itself.
type DeviceClass uint8

// Device class constants.
const (
	// Mobile is a handheld phone-class device.
	Mobile DeviceClass = iota

	// Tablet is a mid-size touch device.
	Tablet

	// Desktop is a large-screen pointer device.
	Desktop
)

// String returns a human-readable name for the device class.
func (d DeviceClass) String() string {
	switch d {
	case Mobile:
		return "Mobile"
	case Tablet:
		return "Tablet"
	case Desktop:
		return "Desktop"
	default:
		return unknownStr
	}
}

// Orientation identifies the viewport orientation.
type Orientation uint8

// Orientation constants.
const (
	// Landscape is wider than tall.
	Landscape Orientation = iota

	// Portrait is taller than wide.
	Portrait
)

// String returns a human-readable name for the orientation.
func (o Orientation) String() string {
	switch o {
	case Landscape:
		return "Landscape"
	case Portrait:
		return "Portrait"
	default:
		return unknownStr
	}
}

// extremeAspectRatio is the width/height ratio (or its inverse) beyond
// which a viewport is considered extreme and layout search widens.
const extremeAspectRatio = 2.0

// Viewport describes the drawable area and the device presenting it.
// It is read-only input supplied by the external environment collaborator.
type Viewport struct {
	// Width and Height are the drawable dimensions in CSS-like units.
	Width  float64
	Height float64

	// Device is the device class reported by the environment.
	Device DeviceClass

	// Orient is the current orientation.
	Orient Orientation

	// PixelRatio is the device pixel ratio (1.0 when unknown).
	PixelRatio float64

	// LowMemory indicates the environment reported memory pressure.
	LowMemory bool

	// ReducedMotion indicates the user prefers reduced animation.
	ReducedMotion bool
}

// AspectRatio returns width/height, or 0 for a degenerate viewport.
func (v Viewport) AspectRatio() float64 {
	if v.Height <= 0 {
		return 0
	}
	return v.Width / v.Height
}

// IsExtreme reports whether the viewport aspect ratio is extreme
// (very wide or very tall), which widens the layout candidate search.
func (v Viewport) IsExtreme() bool {
	ar := v.AspectRatio()
	if ar <= 0 {
		return false
	}
	return ar > extremeAspectRatio || ar < 1/extremeAspectRatio
}

// Bounds returns the viewport rectangle anchored at the origin.
func (v Viewport) Bounds() Rect {
	return RectXYWH(0, 0, v.Width, v.Height)
}

// DegradeLevel is a discrete fidelity tier escalated by the performance
// monitor under sustained pressure and consumed by layout and render.
type DegradeLevel uint8

// Degradation levels, from full fidelity to minimal.
const (
	// DegradeNone renders at full fidelity.
	DegradeNone DegradeLevel = iota

	// DegradeReduced tightens layout budgets and trims effects.
	DegradeReduced

	// DegradeMinimal switches the pipeline to its simplified fallback mode.
	DegradeMinimal
)

// String returns a human-readable name for the degradation level.
func (d DegradeLevel) String() string {
	switch d {
	case DegradeNone:
		return "None"
	case DegradeReduced:
		return "Reduced"
	case DegradeMinimal:
		return "Minimal"
	default:
		return unknownStr
	}
}
