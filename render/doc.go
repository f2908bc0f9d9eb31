// Package render implements the layered, dirty-tracked render pipeline.
//
// The pipeline maintains five fixed z-ordered layers (background <
// content < effects < overlay < debug), each backed by its own pixel
// buffer. A frame redraws only the layers whose contents changed, then
// composites visible layers onto the target surface in z-order.
//
// Each Render call first advances the animation timeline, so drawing
// always observes already-advanced property values. Per-object and
// per-layer draw failures are isolated: they are logged and counted, and
// the rest of the frame continues.
//
// Drawing-surface lifecycle (context creation, loss, recovery) is owned
// by an external collaborator; the pipeline only consumes a valid
// Surface handle and accepts a replacement via SetSurface.
package render
