package render

import (
	"image/color"
	"time"

	"github.com/google/uuid"

	"github.com/matchgrid/matchgrid"
)

// Kind identifies the render-object variant. The set is sealed: each
// kind has its own strongly-typed payload implementing Payload.
type Kind uint8

// Render object kinds, in default z-order.
const (
	// KindBackground is a full-bleed or parallax backdrop.
	KindBackground Kind = iota

	// KindContentItem wraps a matchable-item descriptor from the
	// content collaborator.
	KindContentItem

	// KindEffect is a transient visual effect (pulse, burst, glow).
	KindEffect

	// KindOverlay is UI chrome drawn above content (banners, toasts).
	KindOverlay

	// KindDebug is diagnostic output (counters, bounds).
	KindDebug
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBackground:
		return "Background"
	case KindContentItem:
		return "ContentItem"
	case KindEffect:
		return "Effect"
	case KindOverlay:
		return "Overlay"
	case KindDebug:
		return "Debug"
	default:
		return "Unknown"
	}
}

// Payload is the sealed per-kind payload. Only the payload types in this
// package implement it.
type Payload interface {
	payloadKind() Kind
}

// ContentItem wraps a matchable-item descriptor supplied by the content
// collaborator. The pipeline performs no match-rule interpretation; the
// descriptor is opaque data for drawing and hit queries.
type ContentItem struct {
	// ItemID is the domain id of the matchable item.
	ItemID string

	// AssetKey references the item's visual asset; it doubles as the
	// sprite cache key.
	AssetKey string

	// Category and Rarity are passthrough tags from the content
	// collaborator.
	Category string
	Rarity   uint8

	// Revealed selects the face-up visual.
	Revealed bool
}

func (*ContentItem) payloadKind() Kind { return KindContentItem }

// Background is a backdrop fill, optionally with a parallax factor
// applied to high-frequency scroll offsets.
type Background struct {
	// Color fills the object bounds.
	Color color.RGBA

	// ParallaxFactor scales the pipeline parallax offset for this
	// backdrop (0 = static).
	ParallaxFactor float64
}

func (*Background) payloadKind() Kind { return KindBackground }

// Effect is a transient primitive effect.
type Effect struct {
	// Color is the effect tint.
	Color color.RGBA

	// Radius is the effect radius for circular effects; a zero radius
	// fills the object bounds instead.
	Radius float64
}

func (*Effect) payloadKind() Kind { return KindEffect }

// Overlay is UI chrome with optional text and auto-hide.
type Overlay struct {
	// Text is drawn centered in the object bounds (may be empty).
	Text string

	// Color is the backdrop fill.
	Color color.RGBA

	// AutoHide removes the overlay after the given duration
	// (0 = persistent). Expiry is processed by the per-tick scheduled
	// event queue, never by timers.
	AutoHide time.Duration
}

func (*Overlay) payloadKind() Kind { return KindOverlay }

// Debug is the diagnostic payload.
type Debug struct {
	// ShowBounds draws object bounding boxes of lower layers.
	ShowBounds bool

	// Lines are text lines drawn top-left (FPS counters and the like).
	Lines []string
}

func (*Debug) payloadKind() Kind { return KindDebug }

// Default z values per kind, each centered in its layer's z-range.
const (
	defaultBackgroundZ = zRangeSize/2 + zRangeSize*0
	defaultContentZ    = zRangeSize/2 + zRangeSize*1
	defaultEffectZ     = zRangeSize/2 + zRangeSize*2
	defaultOverlayZ    = zRangeSize/2 + zRangeSize*3
	defaultDebugZ      = zRangeSize/2 + zRangeSize*4
)

// defaultZ returns the default z value for a kind.
func defaultZ(k Kind) int {
	switch k {
	case KindBackground:
		return defaultBackgroundZ
	case KindContentItem:
		return defaultContentZ
	case KindEffect:
		return defaultEffectZ
	case KindOverlay:
		return defaultOverlayZ
	case KindDebug:
		return defaultDebugZ
	default:
		return defaultContentZ
	}
}

// Object is a single drawable. Objects are created when added to the
// pipeline (usually from the pipeline's object pool), mutated through
// UpdateObject and animation, and recycled on removal.
type Object struct {
	// ID is unique within the pipeline. Empty ids are assigned a
	// generated one on Add.
	ID string

	// Z selects the owning layer by range and orders objects within it.
	Z int

	// Pos is the top-left corner; Size the unscaled extent.
	Pos  matchgrid.Point
	Size matchgrid.Size

	// Visible toggles drawing without removing the object.
	Visible bool

	// Opacity is in [0,1].
	Opacity float64

	// Rotation is in radians around the object center.
	Rotation float64

	// Scale is a uniform scale around the object center (1 = none).
	Scale float64

	// Payload is the kind-specific data; it also determines Kind.
	Payload Payload
}

// NewObjectID generates a fresh unique object id.
func NewObjectID() string {
	return uuid.NewString()
}

// Kind returns the payload's kind (KindContentItem for a nil payload's
// zero object, which is never drawable anyway).
func (o *Object) Kind() Kind {
	if o.Payload == nil {
		return KindContentItem
	}
	return o.Payload.payloadKind()
}

// Bounds returns the object's unscaled bounding box.
func (o *Object) Bounds() matchgrid.Rect {
	return matchgrid.RectXYWH(o.Pos.X, o.Pos.Y, o.Size.Width, o.Size.Height)
}

// drawBounds returns the bounding box after scale, for culling and
// drawing. Rotation is ignored for culling; a rotated object's axis
// bounds are approximated by its scaled bounds.
func (o *Object) drawBounds() matchgrid.Rect {
	s := o.Scale
	if s <= 0 {
		s = 1
	}
	w := o.Size.Width * s
	h := o.Size.Height * s
	cx := o.Pos.X + o.Size.Width/2
	cy := o.Pos.Y + o.Size.Height/2
	return matchgrid.RectXYWH(cx-w/2, cy-h/2, w, h)
}

// reset prepares an Object for pool reuse.
func (o *Object) reset() {
	*o = Object{Visible: true, Opacity: 1, Scale: 1}
}

// Patch is a partial object update for UpdateObject. Nil fields are left
// unchanged.
type Patch struct {
	Pos      *matchgrid.Point
	Size     *matchgrid.Size
	Z        *int
	Visible  *bool
	Opacity  *float64
	Rotation *float64
	Scale    *float64

	// Payload replaces the payload. It must keep the same kind;
	// cross-kind updates are rejected.
	Payload Payload
}
