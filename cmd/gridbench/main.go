// Command gridbench drives a synthetic match-board session against a
// software surface: it lays out a board, flips and removes items, forces
// a mid-run resize and reports engine statistics. Use -profile to
// capture CPU or heap profiles of the frame loop.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/matchgrid/matchgrid"
	"github.com/matchgrid/matchgrid/engine"
	"github.com/matchgrid/matchgrid/render"
)

func main() {
	var (
		width    = flag.Int("width", 1200, "surface width")
		height   = flag.Int("height", 800, "surface height")
		items    = flag.Int("items", 24, "board item count")
		frames   = flag.Int("frames", 600, "frames to simulate")
		seed     = flag.Int64("seed", 1, "random seed")
		prof     = flag.String("profile", "", "profile to capture: cpu or mem")
		output   = flag.String("output", "", "write the final frame as PNG")
		verbose  = flag.Bool("v", false, "enable debug logging")
		debugHud = flag.Bool("hud", false, "draw the diagnostic overlay")
	)
	flag.Parse()

	switch *prof {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	case "":
	default:
		log.Fatalf("unknown profile %q (want cpu or mem)", *prof)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	matchgrid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level})))

	if err := run(*width, *height, *items, *frames, *seed, *output, *debugHud); err != nil {
		log.Fatal(err)
	}
}

func run(width, height, items, frames int, seed int64, output string, hud bool) error {
	vp := matchgrid.Viewport{
		Width:      float64(width),
		Height:     float64(height),
		Device:     matchgrid.Desktop,
		Orient:     matchgrid.Landscape,
		PixelRatio: 1,
	}
	surface := render.NewSoftwareSurface(width, height)

	e, err := engine.New(surface, vp,
		engine.WithAssetProducer(syntheticAssets(seed)))
	if err != nil {
		return err
	}
	if err := e.SetBackground(color.RGBA{R: 0x12, G: 0x16, B: 0x22, A: 0xff}, 0.1); err != nil {
		return err
	}
	if hud {
		if err := e.SetDebug(true); err != nil {
			return err
		}
	}

	board := make([]engine.Item, items)
	for i := range board {
		board[i] = engine.Item{
			ID:       fmt.Sprintf("item-%03d", i),
			AssetKey: fmt.Sprintf("asset-%02d", i%(items/2+1)),
			Category: fmt.Sprintf("cat-%d", i%4),
			Rarity:   uint8(i % 5),
		}
	}
	if err := e.SetItems(board); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	now := time.Now()
	frameDur := 16 * time.Millisecond

	for f := 0; f < frames; f++ {
		now = now.Add(frameDur)

		// Poke the board the way an interactive session would.
		switch {
		case f%37 == 13:
			id := fmt.Sprintf("item-%03d", rng.Intn(items))
			if err := e.Reveal(id, true); err == nil {
				_ = e.ShowToast("revealed "+id, 500*time.Millisecond)
			}
		case f%53 == 29:
			id := fmt.Sprintf("item-%03d", rng.Intn(items))
			_ = e.RemoveItems(id) // already-removed ids are fine to skip
		case f%97 == 61:
			if err := e.Shuffle(rng); err != nil {
				return err
			}
		case f == frames/2:
			vp.Width, vp.Height = vp.Height, vp.Width
			vp.Orient = matchgrid.Portrait
			surface = render.NewSoftwareSurface(int(vp.Width), int(vp.Height))
			if err := e.Resize(surface, vp); err != nil {
				return err
			}
		}
		e.SetParallax(matchgrid.Point{X: float64(f) * 0.5})

		e.Tick(now)
	}

	s := e.Stats()
	log.Printf("frames=%d fps=%.1f heap=%.1fMB degrade=%s", frames,
		s.Perf.FPS, s.Perf.HeapMB, s.Perf.Degrade)
	log.Printf("objects=%d items=%d cache=%dB hits=%d misses=%d evictions=%d",
		s.Objects, s.Items, s.Cache.Size, s.Cache.Hits, s.Cache.Misses,
		s.Cache.Evictions)
	log.Printf("pool=%s free=%d inuse=%d acquires=%d exhaustions=%d",
		s.ObjectPool.Name, s.ObjectPool.Free, s.ObjectPool.InUse,
		s.ObjectPool.Acquires, s.ObjectPool.Exhaustions)

	if output != "" {
		if err := writePNG(output, surface); err != nil {
			return err
		}
		log.Printf("final frame written to %s", output)
	}
	return nil
}

func writePNG(path string, surface *render.SoftwareSurface) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, surface.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
