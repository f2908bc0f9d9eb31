package render

import (
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/matchgrid/matchgrid"
)

// Drawing palette.
var (
	cardBackColor    = color.RGBA{R: 0x2b, G: 0x3a, B: 0x67, A: 0xff}
	cardBorderColor  = color.RGBA{R: 0x1a, G: 0x23, B: 0x3e, A: 0xff}
	placeholderColor = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	debugTextColor   = color.RGBA{R: 0x00, G: 0xff, B: 0x66, A: 0xff}

	// categoryPalette provides deterministic flat fills per item
	// category in the simplified fallback mode.
	categoryPalette = []color.RGBA{
		{R: 0xe5, G: 0x73, B: 0x73, A: 0xff},
		{R: 0x64, G: 0xb5, B: 0xf6, A: 0xff},
		{R: 0x81, G: 0xc7, B: 0x84, A: 0xff},
		{R: 0xff, G: 0xd5, B: 0x4f, A: 0xff},
		{R: 0xba, G: 0x68, B: 0xc8, A: 0xff},
		{R: 0xff, G: 0xb7, B: 0x4d, A: 0xff},
	}
)

// drawObject dispatches a single object draw by payload kind.
// Content items delegate to the item-rendering routine; other kinds draw
// primitives directly.
func (p *Pipeline) drawObject(dst *image.RGBA, o *Object, now time.Time) {
	switch payload := o.Payload.(type) {
	case *Background:
		p.drawBackground(dst, o, payload)
	case *ContentItem:
		p.drawContentItem(dst, o, payload, now)
	case *Effect:
		p.drawEffect(dst, o, payload)
	case *Overlay:
		p.drawOverlay(dst, o, payload)
	case *Debug:
		p.drawDebug(dst, o, payload)
	}
}

func (p *Pipeline) drawBackground(dst *image.RGBA, o *Object, bg *Background) {
	r := o.Bounds()
	if bg.ParallaxFactor != 0 {
		r.MinX += p.parallax.X * bg.ParallaxFactor
		r.MaxX += p.parallax.X * bg.ParallaxFactor
		r.MinY += p.parallax.Y * bg.ParallaxFactor
		r.MaxY += p.parallax.Y * bg.ParallaxFactor
	}
	fillRect(dst, r, bg.Color, o.Opacity)
}

// drawContentItem renders one matchable item. Face-down items and the
// simplified fallback mode use flat fills; face-up items blit the cached
// sprite under the full transform stack. Production failure renders a
// deterministic placeholder and is retried only on a later request.
func (p *Pipeline) drawContentItem(dst *image.RGBA, o *Object, item *ContentItem, now time.Time) {
	b := o.drawBounds()

	if !item.Revealed {
		fillRect(dst, b, cardBackColor, o.Opacity)
		strokeRect(dst, b, cardBorderColor, o.Opacity)
		return
	}
	if p.degrade >= matchgrid.DegradeMinimal || p.produce == nil {
		fillRect(dst, b, categoryColor(item.Category), o.Opacity)
		strokeRect(dst, b, cardBorderColor, o.Opacity)
		return
	}

	sprite, err := p.spriteFor(item.AssetKey, now)
	if err != nil {
		matchgrid.Logger().Warn("render: asset production failed",
			"asset", item.AssetKey, "err", err)
		fillRect(dst, b, placeholderColor, o.Opacity)
		strokeRect(dst, b, cardBorderColor, o.Opacity)
		return
	}
	blitTransformed(dst, sprite, o)
}

// spriteFor fetches the sprite through the cache, bounding production by
// the configured timeout.
func (p *Pipeline) spriteFor(assetKey string, now time.Time) (*image.RGBA, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.produceTimeout)
	defer cancel()
	return p.sprites.Get(ctx, assetKey, now, func(ctx context.Context) (*image.RGBA, int64, error) {
		return p.produce(ctx, assetKey)
	})
}

func (p *Pipeline) drawEffect(dst *image.RGBA, o *Object, fx *Effect) {
	if fx.Radius > 0 {
		c := o.drawBounds().Center()
		s := o.Scale
		if s <= 0 {
			s = 1
		}
		fillCircle(dst, c.X, c.Y, fx.Radius*s, fx.Color, o.Opacity)
		return
	}
	fillRect(dst, o.drawBounds(), fx.Color, o.Opacity)
}

func (p *Pipeline) drawOverlay(dst *image.RGBA, o *Object, ov *Overlay) {
	b := o.drawBounds()
	fillRect(dst, b, ov.Color, o.Opacity)
	if ov.Text == "" {
		return
	}
	// Center the text in the overlay bounds.
	face := basicfont.Face7x13
	w := font.MeasureString(face, ov.Text).Ceil()
	x := int(b.MinX) + (int(b.Width())-w)/2
	y := int(b.MinY) + int(b.Height())/2 + face.Ascent/2
	drawText(dst, x, y, ov.Text, color.RGBA{A: 0xff})
}

func (p *Pipeline) drawDebug(dst *image.RGBA, o *Object, dbg *Debug) {
	x := int(o.Pos.X)
	y := int(o.Pos.Y) + basicfont.Face7x13.Ascent
	for _, line := range dbg.Lines {
		drawText(dst, x, y, line, debugTextColor)
		y += basicfont.Face7x13.Height
	}
	if dbg.ShowBounds {
		for _, co := range p.layers[LayerContent].sorted() {
			if co.Visible {
				strokeRect(dst, co.drawBounds(), debugTextColor, 1)
			}
		}
	}
}

// blitTransformed draws a sprite under the object transform stack:
// translate-to-center, scale, rotation, translate-back. The affine is
// composed once and applied with a bilinear-approximation kernel.
func blitTransformed(dst *image.RGBA, sprite *image.RGBA, o *Object) {
	sw := float64(sprite.Bounds().Dx())
	sh := float64(sprite.Bounds().Dy())
	if sw <= 0 || sh <= 0 {
		return
	}

	s := o.Scale
	if s <= 0 {
		s = 1
	}
	sx := s * o.Size.Width / sw
	sy := s * o.Size.Height / sh
	cx := o.Pos.X + o.Size.Width/2
	cy := o.Pos.Y + o.Size.Height/2
	cos, sin := math.Cos(o.Rotation), math.Sin(o.Rotation)

	// M = T(center) * R(rotation) * S(scale) * T(-sprite center)
	m := f64.Aff3{
		cos * sx, -sin * sy, cx - cos*sx*sw/2 + sin*sy*sh/2,
		sin * sx, cos * sy, cy - sin*sx*sw/2 - cos*sy*sh/2,
	}

	opts := &xdraw.Options{}
	if o.Opacity < 1 {
		opts.SrcMask = image.NewUniform(color.Alpha{A: alpha8(o.Opacity)})
	}
	xdraw.ApproxBiLinear.Transform(dst, m, sprite, sprite.Bounds(), xdraw.Over, opts)
}

// fillRect fills an axis-aligned rectangle with an opacity-scaled color.
func fillRect(dst *image.RGBA, r matchgrid.Rect, c color.RGBA, opacity float64) {
	ir := imageRect(r)
	if ir.Empty() {
		return
	}
	draw.DrawMask(dst, ir, image.NewUniform(c), image.Point{},
		image.NewUniform(color.Alpha{A: alpha8(opacity)}), image.Point{}, draw.Over)
}

// strokeRect draws a 1px rectangle outline.
func strokeRect(dst *image.RGBA, r matchgrid.Rect, c color.RGBA, opacity float64) {
	fillRect(dst, matchgrid.Rect{MinX: r.MinX, MinY: r.MinY, MaxX: r.MaxX, MaxY: r.MinY + 1}, c, opacity)
	fillRect(dst, matchgrid.Rect{MinX: r.MinX, MinY: r.MaxY - 1, MaxX: r.MaxX, MaxY: r.MaxY}, c, opacity)
	fillRect(dst, matchgrid.Rect{MinX: r.MinX, MinY: r.MinY, MaxX: r.MinX + 1, MaxY: r.MaxY}, c, opacity)
	fillRect(dst, matchgrid.Rect{MinX: r.MaxX - 1, MinY: r.MinY, MaxX: r.MaxX, MaxY: r.MaxY}, c, opacity)
}

// fillCircle rasterizes a filled circle.
func fillCircle(dst *image.RGBA, cx, cy, radius float64, c color.RGBA, opacity float64) {
	if radius <= 0 {
		return
	}
	src := image.NewUniform(c)
	mask := image.NewUniform(color.Alpha{A: alpha8(opacity)})
	r2 := radius * radius
	minY, maxY := int(cy-radius), int(cy+radius)+1
	for y := minY; y < maxY; y++ {
		dy := float64(y) + 0.5 - cy
		span := r2 - dy*dy
		if span <= 0 {
			continue
		}
		half := math.Sqrt(span)
		row := image.Rect(int(cx-half), y, int(cx+half)+1, y+1)
		draw.DrawMask(dst, row, src, image.Point{}, mask, image.Point{}, draw.Over)
	}
}

// drawText renders a single line with the built-in bitmap face.
// Debug counters and overlay labels only need ASCII; full text shaping
// stays out of this core.
func drawText(dst *image.RGBA, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// categoryColor picks a deterministic palette color for a category tag.
func categoryColor(category string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(category)) // fnv.Write never returns an error
	return categoryPalette[h.Sum32()%uint32(len(categoryPalette))]
}

// imageRect converts a float rect to integer pixel bounds.
func imageRect(r matchgrid.Rect) image.Rectangle {
	return image.Rect(int(r.MinX), int(r.MinY), int(math.Ceil(r.MaxX)), int(math.Ceil(r.MaxY)))
}

// alpha8 converts an opacity in [0,1] to an 8-bit alpha.
func alpha8(opacity float64) uint8 {
	if opacity >= 1 {
		return 0xff
	}
	if opacity <= 0 {
		return 0
	}
	return uint8(opacity * 255)
}
