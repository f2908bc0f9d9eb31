package anim

// Property identifies an animatable render-object property.
// The set is closed; the render pipeline switches exhaustively over it
// when applying animated values.
type Property uint8

// Animatable properties.
const (
	// PropX animates the horizontal position.
	PropX Property = iota

	// PropY animates the vertical position.
	PropY

	// PropOpacity animates opacity in [0,1].
	PropOpacity

	// PropScale animates uniform scale.
	PropScale

	// PropRotation animates rotation in radians.
	PropRotation
)

// String returns a human-readable name for the property.
func (p Property) String() string {
	switch p {
	case PropX:
		return "X"
	case PropY:
		return "Y"
	case PropOpacity:
		return "Opacity"
	case PropScale:
		return "Scale"
	case PropRotation:
		return "Rotation"
	default:
		return "Unknown"
	}
}

// Keyframe is one point on a property track. Time is normalized to [0,1]
// over the animation duration. Easing shapes interpolation from this
// keyframe to the next; nil means Linear.
type Keyframe struct {
	Time   float64
	Value  float64
	Easing Easing
}

// Track animates a single property. With an empty Frames list the track
// interpolates From to To with Ease over the whole duration (the implicit
// two-keyframe form). With explicit Frames, the containing interval is
// located, local progress renormalized, that interval's easing applied,
// then linearly interpolated. Frames must be ordered by Time.
type Track struct {
	Property Property
	From     float64
	To       float64
	Ease     Easing

	Frames []Keyframe
}

// valueAt returns the interpolated value at overall progress t in [0,1].
func (tr *Track) valueAt(t float64) float64 {
	if len(tr.Frames) < 2 {
		ease := tr.Ease
		if ease == nil {
			ease = Linear
		}
		return tr.From + (tr.To-tr.From)*ease(t)
	}

	frames := tr.Frames
	if t <= frames[0].Time {
		return frames[0].Value
	}
	last := frames[len(frames)-1]
	if t >= last.Time {
		return last.Value
	}

	// Locate the containing interval.
	for i := 1; i < len(frames); i++ {
		if t > frames[i].Time {
			continue
		}
		a, b := frames[i-1], frames[i]
		span := b.Time - a.Time
		if span <= 0 {
			return b.Value
		}
		local := (t - a.Time) / span
		ease := a.Easing
		if ease == nil {
			ease = Linear
		}
		return a.Value + (b.Value-a.Value)*ease(local)
	}
	return last.Value
}
