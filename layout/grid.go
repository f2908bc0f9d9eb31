package layout

import "github.com/matchgrid/matchgrid"

// Grid is a computed grid layout. It is immutable once returned; the
// caller owns it and a fresh Grid is computed per request.
type Grid struct {
	// Rows and Cols are the grid dimensions. Rows*Cols >= ItemCount.
	Rows int
	Cols int

	// ItemCount is the number of items laid out.
	ItemCount int

	// ItemWidth and ItemHeight are the computed item dimensions.
	ItemWidth  float64
	ItemHeight float64

	// Gap is the spacing between adjacent items.
	Gap float64

	// Positions holds the top-left corner of each item in row-major
	// order. An incomplete final row is horizontally centered against
	// the full grid width.
	Positions []matchgrid.Point

	// Efficiency is ItemCount/(Rows*Cols), in (0, 1].
	Efficiency float64

	// Score is the optimizer score of the winning candidate
	// (0 for a forced fallback).
	Score float64

	// Strategy is the search strategy that produced this layout.
	Strategy Strategy

	// Forced is true when no candidate validated and the fallback
	// configuration was used.
	Forced bool
}

// Bounds returns the bounding box of all item positions.
func (g Grid) Bounds() matchgrid.Rect {
	var b matchgrid.Rect
	for i, p := range g.Positions {
		r := matchgrid.RectXYWH(p.X, p.Y, g.ItemWidth, g.ItemHeight)
		if i == 0 {
			b = r
			continue
		}
		b = b.Union(r)
	}
	return b
}

// CellRect returns the rectangle of the item at index i, or an empty
// rectangle when i is out of range.
func (g Grid) CellRect(i int) matchgrid.Rect {
	if i < 0 || i >= len(g.Positions) {
		return matchgrid.Rect{}
	}
	p := g.Positions[i]
	return matchgrid.RectXYWH(p.X, p.Y, g.ItemWidth, g.ItemHeight)
}
