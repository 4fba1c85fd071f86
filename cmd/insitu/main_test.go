package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/insitu"
	"github.com/gogpu/insitu/telemetry"
)

func smallConfig(dir string, ranks int) insitu.Config {
	cfg := insitu.DefaultConfig()
	cfg.Grid = insitu.GridConfig{Rows: 3, Cols: 4, Radius: 12, Direction: "uni"}
	cfg.Intervals = insitu.IntervalConfig{Analysis: 1, Entropy: 3}
	cfg.Output.Dir = dir
	cfg.Output.Width, cfg.Output.Height = 48, 48
	cfg.Group.Ranks = ranks
	cfg.Simulation = insitu.SimulationConfig{Steps: 7, Particles: 300, Seed: 3, TimeStep: 0.05}
	return cfg
}

func TestRunLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir, 2)
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	s, err := runLocal(context.Background(), cfg, false)
	if err != nil {
		t.Fatalf("runLocal() = %v", err)
	}
	if s == nil {
		t.Fatal("runLocal() returned no summary")
	}
	// Three keyframes with one candidate each and two drains of two frames.
	if s.images != 7 {
		t.Errorf("images = %d, want 7", s.images)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != s.images {
		t.Errorf("%d png files, want %d", len(files), s.images)
	}
	if len(s.entropies) != 3 {
		t.Errorf("entropies = %v, want one per keyframe", s.entropies)
	}

	m, err := telemetry.ReadManifest(filepath.Join(dir, telemetryDir, telemetry.ManifestFile))
	if err != nil {
		t.Fatalf("ReadManifest() = %v", err)
	}
	if m.Status != "completed" || m.Images != 7 || m.Ranks != 2 {
		t.Errorf("manifest = %+v", m)
	}
	if m.Frame == nil || m.Frame.Width != 48 || m.Frame.Height != 48 {
		t.Errorf("manifest frame = %+v, want 48x48", m.Frame)
	}
}

func TestRunLocalCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runLocal(ctx, smallConfig(t.TempDir(), 2), false)
	if err == nil {
		t.Error("runLocal(cancelled) = nil, want error")
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, &summary{images: 12345, elapsed: 1500 * time.Millisecond, dir: "out", entropies: []float64{1, 3, 2}})
	out := buf.String()
	if !strings.Contains(out, "12,345 images written to out in 1.5s") {
		t.Errorf("report() = %q", out)
	}
	if !strings.Contains(out, "best viewpoint entropy per keyframe") {
		t.Error("report() has no entropy plot")
	}

	buf.Reset()
	report(&buf, &summary{images: 1, dir: "out"})
	if strings.Contains(buf.String(), "entropy") {
		t.Error("report() plotted a single point")
	}
}

func TestPrintEntropies(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x * 60), A: 255})
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path) //nolint:gosec // test file in TempDir
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printEntropies(&buf, insitu.LightnessEntropy, []string{path}); err != nil {
		t.Fatalf("printEntropies() = %v", err)
	}
	if !strings.Contains(buf.String(), "4x4\t4 px\t2.0000") {
		t.Errorf("printEntropies() = %q", buf.String())
	}

	if err := printEntropies(&buf, insitu.LightnessEntropy, []string{path + ".missing"}); err == nil {
		t.Error("printEntropies(missing) = nil, want error")
	}
}
