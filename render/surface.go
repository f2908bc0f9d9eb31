package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/gputypes"
)

// Surface is the drawing target handed to the pipeline by the external
// drawing-surface collaborator. The collaborator owns context creation,
// resize and loss/recovery; after a loss it hands the pipeline a fresh
// handle via Pipeline.SetSurface.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Format returns the pixel format of the surface.
	Format() gputypes.TextureFormat

	// Image returns the CPU pixel buffer the pipeline composites into.
	Image() *image.RGBA
}

// SoftwareSurface is a CPU-backed Surface over *image.RGBA.
type SoftwareSurface struct {
	img *image.RGBA
}

// NewSoftwareSurface creates a CPU surface of the given pixel size.
func NewSoftwareSurface(width, height int) *SoftwareSurface {
	return &SoftwareSurface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Width returns the surface width in pixels.
func (s *SoftwareSurface) Width() int { return s.img.Bounds().Dx() }

// Height returns the surface height in pixels.
func (s *SoftwareSurface) Height() int { return s.img.Bounds().Dy() }

// Format returns the pixel format (RGBA8).
func (s *SoftwareSurface) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Image returns the backing pixel buffer.
func (s *SoftwareSurface) Image() *image.RGBA { return s.img }

// Clear fills the surface with a solid color.
func (s *SoftwareSurface) Clear(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

var _ Surface = (*SoftwareSurface)(nil)
