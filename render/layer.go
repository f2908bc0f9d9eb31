package render

import (
	"image"
	"image/draw"
	"sort"
)

// LayerID identifies one of the five fixed pipeline layers.
type LayerID uint8

// Fixed layers in composite order.
const (
	LayerBackground LayerID = iota
	LayerContent
	LayerEffects
	LayerOverlay
	LayerDebug

	numLayers = 5
)

// zRangeSize is the width of each layer's z-range. Objects select their
// layer purely by z value: [0,100) background, [100,200) content, and so
// on; z >= 400 lands in the debug layer.
const zRangeSize = 100

// String returns a human-readable name for the layer.
func (id LayerID) String() string {
	switch id {
	case LayerBackground:
		return "Background"
	case LayerContent:
		return "Content"
	case LayerEffects:
		return "Effects"
	case LayerOverlay:
		return "Overlay"
	case LayerDebug:
		return "Debug"
	default:
		return "Unknown"
	}
}

// layerForZ maps a z value to its owning layer.
func layerForZ(z int) LayerID {
	if z < 0 {
		return LayerBackground
	}
	id := z / zRangeSize
	if id >= numLayers {
		return LayerDebug
	}
	return LayerID(id)
}

// layer is one z-range bucket of objects with its own pixel buffer.
// It persists from pipeline init until the pipeline is destroyed.
type layer struct {
	id      LayerID
	objects map[string]*Object

	// buf is the layer's offscreen buffer, composited onto the surface
	// when the frame presents.
	buf *image.RGBA

	// dirty marks the layer for redraw before the next present.
	dirty bool

	// zOrder caches the z-sorted object list; rebuilt when sortStale.
	zOrder    []*Object
	sortStale bool
}

func newLayer(id LayerID, w, h int) *layer {
	return &layer{
		id:      id,
		objects: make(map[string]*Object),
		buf:     image.NewRGBA(image.Rect(0, 0, w, h)),
		dirty:   true,
	}
}

func (l *layer) add(o *Object) {
	l.objects[o.ID] = o
	l.dirty = true
	l.sortStale = true
}

func (l *layer) remove(id string) *Object {
	o, ok := l.objects[id]
	if !ok {
		return nil
	}
	delete(l.objects, id)
	l.dirty = true
	l.sortStale = true
	return o
}

// sorted returns the layer's objects ordered by z, with id as the tie
// break so draw order is deterministic.
func (l *layer) sorted() []*Object {
	if !l.sortStale && l.zOrder != nil {
		return l.zOrder
	}
	l.zOrder = l.zOrder[:0]
	for _, o := range l.objects {
		l.zOrder = append(l.zOrder, o)
	}
	sort.Slice(l.zOrder, func(i, j int) bool {
		if l.zOrder[i].Z != l.zOrder[j].Z {
			return l.zOrder[i].Z < l.zOrder[j].Z
		}
		return l.zOrder[i].ID < l.zOrder[j].ID
	})
	l.sortStale = false
	return l.zOrder
}

// clearBuf zeroes the layer buffer before a redraw.
func (l *layer) clearBuf() {
	for i := range l.buf.Pix {
		l.buf.Pix[i] = 0
	}
}

// resize replaces the layer buffer after a surface size change.
func (l *layer) resize(w, h int) {
	l.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	l.dirty = true
}

// compositeOnto alpha-blends the layer buffer onto dst.
func (l *layer) compositeOnto(dst *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), l.buf, image.Point{}, draw.Over)
}
