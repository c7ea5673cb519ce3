// Command fluidsim runs an interactive fluid simulation in a window.
//
// Drag with the mouse or fingers to stir the fluid. Keys:
//
//	Space  inject a random burst
//	C      clear the dye
//	P      pause or resume the solver
//	Esc    quit
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/fluid"
	_ "github.com/gogpu/fluid/gpu"
)

const tps = 60

func main() {
	var (
		width   = flag.Int("width", 1280, "window width")
		height  = flag.Int("height", 720, "window height")
		backend = flag.String("backend", fluid.DefaultBackend, "kernel backend ("+strings.Join(fluid.Backends(), ", ")+")")
		config  = flag.String("config", "", "YAML parameter file, reloaded on change")
		seed    = flag.Uint64("seed", 0, "random seed (0 picks one)")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *verbose {
		fluid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	params := fluid.DefaultParams()
	if *config != "" {
		p, err := fluid.LoadParams(*config)
		if err != nil {
			log.Fatalf("fluidsim: %v", err)
		}
		params = p
	}

	opts := []fluid.Option{fluid.WithBackend(*backend), fluid.WithParams(params)}
	if *seed != 0 {
		opts = append(opts, fluid.WithSeed(*seed))
	}
	sim, err := fluid.New(*width, *height, opts...)
	if err != nil {
		log.Fatalf("fluidsim: %v", err)
	}
	defer func() { _ = sim.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *config != "" {
		go func() {
			err := fluid.WatchParams(ctx, *config, func(p fluid.Params) {
				if err := sim.SetParams(p); err != nil {
					fluid.Logger().Warn("fluidsim: parameters rejected", "err", err)
				}
			})
			if err != nil {
				fluid.Logger().Warn("fluidsim: watch disabled", "err", err)
			}
		}()
	}

	s := *seed
	if s == 0 {
		s = rand.Uint64()
	}
	g := &game{ctx: ctx, sim: sim, rng: rand.New(rand.NewPCG(s, s+1)), input: newPointerState()}
	if err := sim.MultiSplat(g.burstSize()); err != nil {
		log.Fatalf("fluidsim: %v", err)
	}

	ebiten.SetWindowTitle("fluid (" + sim.Backend() + ")")
	ebiten.SetWindowSize(*width, *height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(tps)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatalf("fluidsim: %v", err)
	}
}

type game struct {
	ctx   context.Context
	sim   *fluid.Simulation
	rng   *rand.Rand
	input *pointerState

	touchIDs []ebiten.TouchID
	touches  []touchSample

	frame  *ebiten.Image
	pixels []byte
}

// burstSize returns a random burst of 5 to 24 splats.
func (g *game) burstSize() int { return 5 + g.rng.IntN(20) }

func (g *game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if err := g.handleKeys(); err != nil {
		return err
	}

	x, y := ebiten.CursorPosition()
	m := mouseSample{x: x, y: y, pressed: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)}
	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
	g.touches = g.touches[:0]
	for _, id := range g.touchIDs {
		tx, ty := ebiten.TouchPosition(id)
		g.touches = append(g.touches, touchSample{id: int(id), x: tx, y: ty})
	}
	for _, ev := range g.input.update(m, g.touches) {
		g.sim.HandlePointer(ev)
	}

	if err := g.sim.Step(1.0 / tps); err != nil {
		return err
	}
	return g.sim.Present()
}

func (g *game) handleKeys() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if err := g.sim.MultiSplat(g.burstSize()); err != nil && !errors.Is(err, fluid.ErrSplatPending) {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		if err := g.sim.Clear(); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		p := g.sim.Params()
		p.Paused = !p.Paused
		if err := g.sim.SetParams(p); err != nil {
			return err
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	w, h := g.sim.Size()
	if g.frame == nil || g.frame.Bounds().Dx() != w || g.frame.Bounds().Dy() != h {
		if g.frame != nil {
			g.frame.Deallocate()
		}
		g.frame = ebiten.NewImage(w, h)
		g.pixels = make([]byte, w*h*4)
	}
	if err := g.sim.ReadPixels(g.pixels); err != nil {
		fluid.Logger().Warn("fluidsim: read pixels", "err", err)
		return
	}
	g.frame.WritePixels(g.pixels)
	screen.DrawImage(g.frame, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if w, h := g.sim.Size(); w != outsideWidth || h != outsideHeight {
		if err := g.sim.Resize(outsideWidth, outsideHeight); err != nil {
			fluid.Logger().Warn("fluidsim: resize", "err", err)
		}
	}
	return outsideWidth, outsideHeight
}
