package main

import (
	"context"
	"hash/fnv"
	"image"
	"image/color"

	"github.com/matchgrid/matchgrid/render"
)

// assetSize is the pixel size of generated sprites.
const assetSize = 96

// syntheticAssets returns a producer that renders a deterministic
// per-key sprite: a radial shade over a key-derived base color. The
// work is deliberately non-trivial so cache hits and misses show up in
// profiles.
func syntheticAssets(seed int64) render.AssetProducer {
	return func(ctx context.Context, assetKey string) (*image.RGBA, int64, error) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(assetKey))
		sum := h.Sum64() + uint64(seed)

		base := color.RGBA{
			R: uint8(64 + sum%160),
			G: uint8(64 + (sum>>8)%160),
			B: uint8(64 + (sum>>16)%160),
			A: 0xff,
		}

		img := image.NewRGBA(image.Rect(0, 0, assetSize, assetSize))
		c := float64(assetSize) / 2
		for y := 0; y < assetSize; y++ {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			for x := 0; x < assetSize; x++ {
				dx := float64(x) + 0.5 - c
				dy := float64(y) + 0.5 - c
				d := (dx*dx + dy*dy) / (c * c)
				if d > 1 {
					d = 1
				}
				shade := 1 - d*0.6
				img.SetRGBA(x, y, color.RGBA{
					R: uint8(float64(base.R) * shade),
					G: uint8(float64(base.G) * shade),
					B: uint8(float64(base.B) * shade),
					A: 0xff,
				})
			}
		}
		return img, int64(len(img.Pix)), nil
	}
}
