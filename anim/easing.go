// Package anim provides easing curves and a pooled keyframe animation
// timeline driven by the frame tick.
package anim

import "math"

// Easing maps normalized progress t in [0,1] to an eased value.
// Elastic and back curves overshoot [0,1]; callers interpolate with the
// returned factor directly.
type Easing func(t float64) float64

// Linear is the identity easing.
func Linear(t float64) float64 { return t }

// EaseInQuad accelerates from zero velocity.
func EaseInQuad(t float64) float64 { return t * t }

// EaseOutQuad decelerates to zero velocity.
func EaseOutQuad(t float64) float64 { return t * (2 - t) }

// EaseInOutQuad accelerates until halfway, then decelerates.
func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

// EaseInCubic accelerates from zero velocity, steeper than quad.
func EaseInCubic(t float64) float64 { return t * t * t }

// EaseOutCubic decelerates to zero velocity, steeper than quad.
func EaseOutCubic(t float64) float64 {
	u := t - 1
	return u*u*u + 1
}

// EaseInOutCubic accelerates until halfway, then decelerates.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := 2*t - 2
	return 1 + u*u*u/2
}

// EaseInSine accelerates along a quarter sine wave.
func EaseInSine(t float64) float64 {
	return 1 - math.Cos(t*math.Pi/2)
}

// EaseOutSine decelerates along a quarter sine wave.
func EaseOutSine(t float64) float64 {
	return math.Sin(t * math.Pi / 2)
}

// EaseInOutSine eases with a half sine wave.
func EaseInOutSine(t float64) float64 {
	return -(math.Cos(math.Pi*t) - 1) / 2
}

// EaseOutElastic overshoots and oscillates before settling.
func EaseOutElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	const c4 = (2 * math.Pi) / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

// EaseOutBack overshoots slightly past the end before settling.
func EaseOutBack(t float64) float64 {
	const c1 = 1.70158
	const c3 = c1 + 1
	u := t - 1
	return 1 + c3*u*u*u + c1*u*u
}

// EaseOutBounce simulates a ball bouncing to rest. Closed-form piecewise
// parabolas, no iteration.
func EaseOutBounce(t float64) float64 {
	const n1 = 7.5625
	const d1 = 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

// Bezier inversion bounds.
const (
	bezierIterations = 32
	bezierTolerance  = 1e-5
)

// CubicBezier returns an easing equivalent to the CSS
// cubic-bezier(x1, y1, x2, y2) timing function, anchored at (0,0) and
// (1,1). The curve parameter for a given x is found by bounded binary
// search on the monotonic x(t) polynomial (fixed iteration cap and
// tolerance), then y is evaluated at that parameter.
func CubicBezier(x1, y1, x2, y2 float64) Easing {
	sample := func(a, b, t float64) float64 {
		// Cubic bezier with P0=0, P3=1:
		// B(t) = 3(1-t)^2 t a + 3(1-t) t^2 b + t^3
		inv := 1 - t
		return 3*inv*inv*t*a + 3*inv*t*t*b + t*t*t
	}

	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		lo, hi := 0.0, 1.0
		t := x
		for i := 0; i < bezierIterations; i++ {
			cur := sample(x1, x2, t)
			if math.Abs(cur-x) < bezierTolerance {
				break
			}
			if cur < x {
				lo = t
			} else {
				hi = t
			}
			t = (lo + hi) / 2
		}
		return sample(y1, y2, t)
	}
}

// EasingByName resolves a well-known easing name, defaulting to Linear.
// Useful when animation definitions come from external content data.
func EasingByName(name string) Easing {
	switch name {
	case "linear", "":
		return Linear
	case "ease-in-quad":
		return EaseInQuad
	case "ease-out-quad":
		return EaseOutQuad
	case "ease-in-out-quad":
		return EaseInOutQuad
	case "ease-in-cubic":
		return EaseInCubic
	case "ease-out-cubic":
		return EaseOutCubic
	case "ease-in-out-cubic":
		return EaseInOutCubic
	case "ease-in-sine":
		return EaseInSine
	case "ease-out-sine":
		return EaseOutSine
	case "ease-in-out-sine":
		return EaseInOutSine
	case "ease-out-elastic":
		return EaseOutElastic
	case "ease-out-back":
		return EaseOutBack
	case "ease-out-bounce":
		return EaseOutBounce
	default:
		return Linear
	}
}
