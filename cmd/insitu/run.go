package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/insitu"
	"github.com/gogpu/insitu/comm"
	"github.com/gogpu/insitu/composite"
	"github.com/gogpu/insitu/internal/demo"
	"github.com/gogpu/insitu/output"
	"github.com/gogpu/insitu/telemetry"
)

// telemetryDir is the subdirectory of the output directory holding the
// CSV series and the run manifest.
const telemetryDir = "telemetry"

// summary is what root reports at the end of a run.
type summary struct {
	images    int
	elapsed   time.Duration
	dir       string
	entropies []float64
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	progress := !c.Bool("quiet")
	var s *summary
	if c.Bool("tcp") {
		s, err = runTCP(ctx, cfg, c.Int("rank"), progress)
	} else {
		s, err = runLocal(ctx, cfg, progress)
	}
	if s != nil && progress {
		report(os.Stdout, s)
	}
	return err
}

// loadConfig reads the configuration file, if any, and applies the
// command line overrides.
func loadConfig(c *cli.Context) (insitu.Config, error) {
	cfg := insitu.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := insitu.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	if c.IsSet("ranks") {
		cfg.Group.Ranks = c.Int("ranks")
	}
	if c.IsSet("steps") {
		cfg.Simulation.Steps = c.Int("steps")
	}
	if c.IsSet("out") {
		cfg.Output.Dir = c.String("out")
	}
	if c.IsSet("addr") {
		cfg.Group.Addr = c.String("addr")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runLocal runs every rank of the group as a goroutine. The first failing
// rank closes the group so that the others return from their collectives.
func runLocal(ctx context.Context, cfg insitu.Config, progress bool) (*summary, error) {
	n := max(cfg.Group.Ranks, 1)
	group := comm.NewGroup(n)
	defer func() { _ = group.Close() }()

	comms := make([]*comm.Local, n)
	for rank := range comms {
		cm, err := group.Comm(rank)
		if err != nil {
			return nil, err
		}
		comms[rank] = cm
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		first  error
		result *summary
	)
	for _, cm := range comms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := runRank(ctx, cfg, cm, progress)
			mu.Lock()
			defer mu.Unlock()
			if s != nil {
				result = s
			}
			if err != nil && first == nil {
				first = fmt.Errorf("rank %d: %w", cm.Rank(), err)
				cancel()
				_ = group.Close()
			}
		}()
	}
	wg.Wait()
	return result, first
}

// runTCP joins a TCP group as the given rank. Rank 0 accepts the others.
func runTCP(ctx context.Context, cfg insitu.Config, rank int, progress bool) (*summary, error) {
	var (
		cm  *comm.TCP
		err error
	)
	if rank == insitu.Root {
		ln, lerr := comm.Listen(cfg.Group.Addr, cfg.Group.Ranks)
		if lerr != nil {
			return nil, lerr
		}
		defer func() { _ = ln.Close() }()
		insitu.Logger().Info("waiting for ranks", "addr", ln.Addr().String(), "ranks", cfg.Group.Ranks)
		cm, err = ln.Accept(ctx)
	} else {
		cm, err = comm.Dial(ctx, cfg.Group.Addr, rank, cfg.Group.Ranks)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = cm.Close() }()
	return runRank(ctx, cfg, cm, progress)
}

// runRank drives one rank's simulation and controller to the last step.
// Only root writes images and telemetry and returns a summary.
func runRank(ctx context.Context, cfg insitu.Config, cm comm.Comm, progress bool) (*summary, error) {
	coord, err := insitu.NewCoordinator(cm, cfg.Group.Ranks)
	if err != nil {
		return nil, err
	}
	sim, err := demo.NewSimulation(demo.SimOptions{
		Particles: cfg.Simulation.Particles,
		Seed:      cfg.Simulation.Seed,
		TimeStep:  cfg.Simulation.TimeStep,
		Radius:    cfg.Grid.Radius / 3,
	}, cm.Rank(), cm.Size())
	if err != nil {
		return nil, err
	}
	renderer := demo.NewPointRenderer(cfg.Output.Width, cfg.Output.Height)

	opts := append(cfg.Options(), insitu.WithCompositor(composite.New(cm)))
	var (
		rec      *telemetry.Recorder
		writer   *output.Writer
		manifest telemetry.Manifest
	)
	if coord.IsRoot() {
		format, err := output.ParseFormat(cfg.Output.Format)
		if err != nil {
			return nil, err
		}
		writer, err = output.NewWriter(output.Options{
			Dir:    cfg.Output.Dir,
			Base:   cfg.Output.Base,
			Format: format,
			Label:  cfg.Output.Label,
			Depth:  cfg.Output.Depth,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, insitu.WithSink(writer))
		if cfg.Output.Telemetry {
			rec, err = telemetry.NewRecorder(filepath.Join(cfg.Output.Dir, telemetryDir))
			if err != nil {
				return nil, err
			}
			opts = append(opts, insitu.WithTelemetry(rec))
			manifest = telemetry.NewManifest(cfg, cm.Size())
		}
	}

	ctrl, err := insitu.NewController(coord, renderer, opts...)
	if err != nil {
		if rec != nil {
			_ = rec.Close()
		}
		return nil, err
	}
	defer ctrl.Close()

	var bar *progressbar.ProgressBar
	if progress && coord.IsRoot() {
		bar = progressbar.Default(int64(cfg.Simulation.Steps), "stepping")
	}
	start := time.Now()
	for i := 0; i < cfg.Simulation.Steps; i++ {
		if err = ctrl.Step(ctx, sim.Advance()); err != nil {
			break
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if !coord.IsRoot() {
		return nil, err
	}

	s := &summary{images: ctrl.Images(), elapsed: time.Since(start), dir: cfg.Output.Dir}
	if rec != nil {
		s.entropies = rec.MaxEntropies()
		if extent, colorFormat, depthFormat, ok := writer.Layout(); ok {
			manifest.SetFrame(extent, colorFormat, depthFormat)
		}
		manifest.Finish(ctrl.Images(), err)
		err = errors.Join(err,
			rec.Close(),
			telemetry.WriteManifest(filepath.Join(rec.Dir(), telemetry.ManifestFile), manifest))
	}
	return s, err
}

// report prints the image count and a plot of the best viewpoint entropy
// of every keyframe.
func report(w io.Writer, s *summary) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "%d images written to %s in %v\n", s.images, s.dir, s.elapsed.Round(time.Millisecond))
	if len(s.entropies) < 2 {
		return
	}
	_, _ = fmt.Fprintln(w, asciigraph.Plot(s.entropies,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("best viewpoint entropy per keyframe")))
}
