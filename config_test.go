package insitu

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "insitu.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
grid:
  rows: 3
  cols: 6
intervals:
  entropy: 7
zoom:
  levels: 4
  auto: false
output:
  format: tiff
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() = %v", err)
	}
	def := DefaultConfig()
	if cfg.Grid.Rows != 3 || cfg.Grid.Cols != 6 {
		t.Errorf("grid = %dx%d, want 3x6", cfg.Grid.Rows, cfg.Grid.Cols)
	}
	if cfg.Grid.Radius != def.Grid.Radius {
		t.Errorf("Radius = %v, want default %v", cfg.Grid.Radius, def.Grid.Radius)
	}
	if cfg.Intervals.Entropy != 7 || cfg.Intervals.Analysis != def.Intervals.Analysis {
		t.Errorf("intervals = %+v", cfg.Intervals)
	}
	if cfg.Zoom.Levels != 4 || cfg.Zoom.Auto {
		t.Errorf("zoom = %+v, want 4 levels fixed", cfg.Zoom)
	}
	if cfg.Output.Format != "tiff" || cfg.Output.Base != def.Output.Base {
		t.Errorf("output = %+v", cfg.Output)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"bad direction", "grid:\n  direction: sideways\n", ErrConfig},
		{"bad policy", "focus:\n  policy: median\n", ErrConfig},
		{"bad entropy", "entropy: gini\n", ErrConfig},
		{"bad interpolation", "interpolation: bezier\n", ErrConfig},
		{"bad format", "output:\n  format: gif\n", ErrConfig},
		{"zero interval", "intervals:\n  entropy: 0\n", ErrConfig},
		{"zero rows", "grid:\n  rows: 0\n", ErrConfig},
		{"zero steps", "simulation:\n  steps: 0\n", ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadConfig() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig() = %v, want ErrNotExist", err)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "grid: [1, 2")); err == nil {
		t.Error("LoadConfig() = nil, want parse error")
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Candidates = CandidateConfig{Viewpoints: 2, Focus: 3}
	cfg.Intervals.Entropy = 5
	cfg.Simulation.Steps = 20
	cfg.Grid.Direction = "omni"
	cfg.Workers = 3
	cfg.Interpolation = "squad"

	o := defaultOptions()
	for _, opt := range cfg.Options() {
		opt(&o)
	}
	if o.viewpoints != 2 || o.focusCandidates != 3 {
		t.Errorf("candidates = %d x %d, want 2 x 3", o.viewpoints, o.focusCandidates)
	}
	if o.entropyInterval != 5 {
		t.Errorf("entropyInterval = %d, want 5", o.entropyInterval)
	}
	if o.finalStep != 19 {
		t.Errorf("finalStep = %d, want 19", o.finalStep)
	}
	if o.direction != Omni {
		t.Errorf("direction = %v, want omni", o.direction)
	}
	if o.workers != 3 {
		t.Errorf("workers = %d, want 3", o.workers)
	}
	if o.interpolation != Squad {
		t.Errorf("interpolation = %v, want squad", o.interpolation)
	}
}
