// Package matchgrid provides the rendering and layout core for a
// browser-style match game: an adaptive grid-layout optimizer and a layered,
// dirty-tracked render pipeline with keyframe animation, resource caching,
// and object pooling.
//
// # Overview
//
// matchgrid computes where matchable items go on a canvas-like surface and
// draws them there, for arbitrary item counts, viewport sizes, device
// classes and orientations. The core is deliberately small and synchronous:
// one external per-frame tick drives everything.
//
// # Quick Start
//
//	import (
//	    "github.com/matchgrid/matchgrid"
//	    "github.com/matchgrid/matchgrid/engine"
//	    "github.com/matchgrid/matchgrid/render"
//	)
//
//	vp := matchgrid.Viewport{Width: 1200, Height: 800, Device: matchgrid.Desktop}
//	surf := render.NewSoftwareSurface(1200, 800)
//	eng, err := engine.New(surf, vp)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.SetItems(board); err != nil {
//	    log.Fatal(err)
//	}
//	eng.Tick(time.Now())
//
// # Architecture
//
// The library is organized into:
//   - Root: shared leaf types (Point, Rect, Viewport, DegradeLevel, logging)
//   - layout: grid search optimizer (pure, deterministic)
//   - render: layered pipeline with culling and per-object draw dispatch
//   - anim: keyframe/easing timeline
//   - cache: LRU resource cache with age and memory-pressure eviction
//   - pool: named reusable-instance pools
//   - perf: frame/memory monitor and degradation policy
//   - engine: composition of the above behind a single Tick
//
// # Collaborators
//
// Device/environment detection, drawing-surface lifecycle (context
// creation, loss, recovery), input binding and game rules live outside this
// module. The pipeline consumes a ready Surface handle and read-only
// Viewport data, and exposes object bounds for external hit testing.
//
// # Coordinate System
//
// Standard computer graphics coordinates: origin at top-left, X right,
// Y down, angles in radians.
package matchgrid

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 1
)
