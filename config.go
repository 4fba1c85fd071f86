package insitu

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the start-up configuration of an in-situ run.
type Config struct {
	Grid          GridConfig       `yaml:"grid"`
	Intervals     IntervalConfig   `yaml:"intervals"`
	Candidates    CandidateConfig  `yaml:"candidates"`
	Focus         FocusConfig      `yaml:"focus"`
	Zoom          ZoomConfig       `yaml:"zoom"`
	Entropy       string           `yaml:"entropy"`       // lightness, color, depth, mixed
	Workers       int              `yaml:"workers"`       // entropy goroutines on root, 0 for GOMAXPROCS
	Interpolation string           `yaml:"interpolation"` // slerp, squad
	Output        OutputConfig     `yaml:"output"`
	Group         GroupConfig      `yaml:"group"`
	Simulation    SimulationConfig `yaml:"simulation"`
}

// GridConfig describes the viewpoint sphere.
type GridConfig struct {
	Rows      int     `yaml:"rows"` // elevation samples, poles included
	Cols      int     `yaml:"cols"` // azimuth samples
	Radius    float64 `yaml:"radius"`
	Direction string  `yaml:"direction"` // uni, omni, adaptive
}

// IntervalConfig sets how often steps are analyzed and searched.
type IntervalConfig struct {
	Analysis int `yaml:"analysis"`
	Entropy  int `yaml:"entropy"`
}

// CandidateConfig sets how many endpoints a keyframe keeps.
type CandidateConfig struct {
	Viewpoints int `yaml:"viewpoints"`
	Focus      int `yaml:"focus"`
}

// FocusConfig configures the focus window search.
type FocusConfig struct {
	DivisionsX int    `yaml:"divisions_x"`
	DivisionsY int    `yaml:"divisions_y"`
	Policy     string `yaml:"policy"` // biggest, maximal
}

// ZoomConfig configures the zoom search.
type ZoomConfig struct {
	Levels int  `yaml:"levels"`
	Auto   bool `yaml:"auto"`
}

// OutputConfig configures image and telemetry output.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Base      string `yaml:"base"`
	Format    string `yaml:"format"` // png, bmp, tiff
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Label     bool   `yaml:"label"`     // draw step/candidate caption
	Depth     bool   `yaml:"depth"`     // also write depth images
	Telemetry bool   `yaml:"telemetry"` // write CSV series and run.yaml
}

// GroupConfig configures the process group.
type GroupConfig struct {
	Ranks int    `yaml:"ranks"` // 0 accepts any group size
	Addr  string `yaml:"addr"`  // root address for TCP groups
}

// SimulationConfig configures the bundled demo simulation.
type SimulationConfig struct {
	Steps     int     `yaml:"steps"`
	Particles int     `yaml:"particles"`
	Seed      int64   `yaml:"seed"`
	TimeStep  float64 `yaml:"time_step"`
}

// DefaultConfig returns the configuration used for absent keys.
func DefaultConfig() Config {
	return Config{
		Grid:          GridConfig{Rows: 5, Cols: 8, Radius: 12, Direction: "uni"},
		Intervals:     IntervalConfig{Analysis: 1, Entropy: 10},
		Candidates:    CandidateConfig{Viewpoints: 1, Focus: 1},
		Focus:         FocusConfig{DivisionsX: 4, DivisionsY: 4, Policy: "biggest"},
		Zoom:          ZoomConfig{Levels: 1, Auto: true},
		Entropy:       "mixed",
		Interpolation: "slerp",
		Output: OutputConfig{
			Dir:       "output",
			Base:      "output",
			Format:    "png",
			Width:     256,
			Height:    256,
			Telemetry: true,
		},
		Group:      GroupConfig{Ranks: 1, Addr: "127.0.0.1:7700"},
		Simulation: SimulationConfig{Steps: 40, Particles: 20000, Seed: 1, TimeStep: 0.01},
	}
}

// LoadConfig reads a YAML configuration file. Keys absent from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration. Errors wrap ErrConfig.
func (c *Config) Validate() error {
	if _, err := ParseDirection(c.Grid.Direction); err != nil {
		return err
	}
	if _, err := ParseFocusPolicy(c.Focus.Policy); err != nil {
		return err
	}
	if _, err := EntropyByName(c.Entropy); err != nil {
		return err
	}
	if _, err := ParseInterpolation(c.Interpolation); err != nil {
		return err
	}
	switch c.Output.Format {
	case "png", "bmp", "tiff":
	default:
		return fmt.Errorf("%w: output format %q", ErrConfig, c.Output.Format)
	}
	if c.Output.Width < 1 || c.Output.Height < 1 {
		return fmt.Errorf("%w: output size %dx%d", ErrConfig, c.Output.Width, c.Output.Height)
	}
	if c.Group.Ranks < 0 {
		return fmt.Errorf("%w: ranks %d", ErrConfig, c.Group.Ranks)
	}
	if c.Simulation.Steps < 1 {
		return fmt.Errorf("%w: simulation steps %d", ErrConfig, c.Simulation.Steps)
	}
	o := defaultOptions()
	for _, opt := range c.controllerOptions() {
		opt(&o)
	}
	return o.validate()
}

// Options converts the configuration into controller options. The last
// simulation step is marked final. Validate must have succeeded.
func (c *Config) Options() []Option {
	return append(c.controllerOptions(), WithFinalStep(c.Simulation.Steps-1))
}

func (c *Config) controllerOptions() []Option {
	dir, _ := ParseDirection(c.Grid.Direction)
	policy, _ := ParseFocusPolicy(c.Focus.Policy)
	entropy, _ := EntropyByName(c.Entropy)
	interp, _ := ParseInterpolation(c.Interpolation)
	return []Option{
		WithGrid(c.Grid.Rows, c.Grid.Cols, c.Grid.Radius),
		WithDirection(dir),
		WithIntervals(c.Intervals.Analysis, c.Intervals.Entropy),
		WithCandidates(c.Candidates.Viewpoints, c.Candidates.Focus),
		WithFocus(c.Focus.DivisionsX, c.Focus.DivisionsY, policy),
		WithZoom(c.Zoom.Levels, c.Zoom.Auto),
		WithEntropy(entropy),
		WithWorkers(c.Workers),
		WithInterpolation(interp),
	}
}
