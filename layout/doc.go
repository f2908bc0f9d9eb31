// Package layout computes best-fit grid layouts for matchable items.
//
// The optimizer is a pure function: identical inputs (item count, viewport,
// device class, orientation, degradation level) always produce identical
// output. It enumerates candidate column counts around sqrt(itemCount),
// sizes items with an iterative shrink loop under a fixed aspect ratio,
// scores each valid candidate, and keeps the best. When no candidate fits,
// a forced fallback configuration is returned instead of an error.
package layout
