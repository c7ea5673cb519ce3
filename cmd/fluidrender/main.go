// Command fluidrender runs a fluid simulation without a window and writes
// frames as PNG files.
//
// Example:
//
//	fluidrender -frames 300 -every 10 -out frames -metrics :9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/fluid"
	_ "github.com/gogpu/fluid/gpu"
	"github.com/gogpu/fluid/internal/export"
	"github.com/gogpu/fluid/metrics"
)

type config struct {
	width, height int
	frames        int
	every         int
	dt            float64
	out           string
	scaleW        int
	scaleH        int
	quality       string
	backend       string
	params        string
	watch         bool
	metricsAddr   string
	seed          uint64
	bursts        int
	field         string
	gain          float64
}

func main() {
	var cfg config
	flag.IntVar(&cfg.width, "width", 800, "canvas width")
	flag.IntVar(&cfg.height, "height", 600, "canvas height")
	flag.IntVar(&cfg.frames, "frames", 120, "number of ticks to simulate")
	flag.IntVar(&cfg.every, "every", 0, "save every N-th frame (0 saves only the last)")
	flag.Float64Var(&cfg.dt, "dt", 1.0/60, "timestep in seconds")
	flag.StringVar(&cfg.out, "out", "frames", "output directory")
	flag.IntVar(&cfg.scaleW, "scale-width", 0, "output width (0 keeps the canvas size)")
	flag.IntVar(&cfg.scaleH, "scale-height", 0, "output height (0 keeps the canvas size)")
	flag.StringVar(&cfg.quality, "quality", "catmullrom", "scaling quality (nearest, bilinear, catmullrom)")
	flag.StringVar(&cfg.backend, "backend", fluid.DefaultBackend, "kernel backend ("+strings.Join(fluid.Backends(), ", ")+")")
	flag.StringVar(&cfg.params, "config", "", "YAML parameter file")
	flag.BoolVar(&cfg.watch, "watch", false, "reload -config on change")
	flag.StringVar(&cfg.metricsAddr, "metrics", "", "serve Prometheus metrics on this address")
	flag.Uint64Var(&cfg.seed, "seed", 0, "random seed (0 picks one)")
	flag.IntVar(&cfg.bursts, "bursts", 0, "splats in the initial burst (0 picks 5-24)")
	flag.StringVar(&cfg.field, "field", "", "also export a raw field (velocity, dye, pressure, divergence, curl)")
	flag.Float64Var(&cfg.gain, "gain", 0.01, "value scale of -field images")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *verbose {
		fluid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("fluidrender: %v", err)
	}
}

func run(ctx context.Context, cfg config) error {
	quality, err := export.ParseQuality(cfg.quality)
	if err != nil {
		return err
	}

	params := fluid.DefaultParams()
	if cfg.params != "" {
		if params, err = fluid.LoadParams(cfg.params); err != nil {
			return err
		}
	}

	seed := cfg.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	opts := []fluid.Option{
		fluid.WithBackend(cfg.backend),
		fluid.WithParams(params),
		fluid.WithSeed(seed),
	}

	if cfg.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, fluid.WithObserver(metrics.New(reg)))
		srv := &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fluid.Logger().Warn("fluidrender: metrics server", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sim, err := fluid.New(cfg.width, cfg.height, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Close() }()

	if cfg.watch && cfg.params != "" {
		go func() {
			err := fluid.WatchParams(ctx, cfg.params, func(p fluid.Params) {
				if err := sim.SetParams(p); err != nil {
					fluid.Logger().Warn("fluidrender: parameters rejected", "err", err)
				}
			})
			if err != nil {
				fluid.Logger().Warn("fluidrender: watch disabled", "err", err)
			}
		}()
	}

	bursts := cfg.bursts
	if bursts <= 0 {
		bursts = 5 + rand.New(rand.NewPCG(seed, seed+1)).IntN(20)
	}
	if err := sim.MultiSplat(bursts); err != nil {
		return err
	}

	start := time.Now()
	saved := 0
	for i := range cfg.frames {
		if ctx.Err() != nil {
			break
		}
		if err := sim.Step(float32(cfg.dt)); err != nil {
			return err
		}
		last := i == cfg.frames-1
		if !last && (cfg.every <= 0 || (i+1)%cfg.every != 0) {
			continue
		}
		if err := saveFrame(sim, cfg, quality, i); err != nil {
			return err
		}
		saved++
	}
	fluid.Logger().Info("fluidrender: done",
		"frames", cfg.frames, "saved", saved, "elapsed", time.Since(start))
	log.Printf("fluidrender: %d frames saved to %s (%s backend)", saved, cfg.out, sim.Backend())
	return nil
}

func saveFrame(sim *fluid.Simulation, cfg config, quality export.Quality, index int) error {
	if err := sim.Present(); err != nil {
		return err
	}
	img, err := sim.Image()
	if err != nil {
		return err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if cfg.scaleW > 0 {
		w = cfg.scaleW
	}
	if cfg.scaleH > 0 {
		h = cfg.scaleH
	}
	if err := export.Save(export.FramePath(cfg.out, index), export.Scale(img, w, h, quality)); err != nil {
		return err
	}

	if cfg.field == "" {
		return nil
	}
	data, fw, fh, err := sim.ReadField(cfg.field)
	if err != nil {
		return err
	}
	fimg, err := export.FieldImage(data, fw, fh, float32(cfg.gain))
	if err != nil {
		return err
	}
	path := export.FramePath(cfg.out, index)
	path = path[:len(path)-len(".png")] + fmt.Sprintf("_%s.png", cfg.field)
	return export.Save(path, export.Scale(fimg, w, h, export.Nearest))
}
