package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/insitu"
)

// ManifestFile is the name of the run manifest.
const ManifestFile = "run.yaml"

// Manifest describes one run.
type Manifest struct {
	RunID    string        `yaml:"run_id"`
	Started  time.Time     `yaml:"started"`
	Finished time.Time     `yaml:"finished,omitempty"`
	Ranks    int           `yaml:"ranks"`
	Images   int           `yaml:"images"`
	Status   string        `yaml:"status"`
	Frame    *FrameInfo    `yaml:"frame,omitempty"`
	Config   insitu.Config `yaml:"config"`
}

// FrameInfo describes the image buffers of a run.
type FrameInfo struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	Color  string `yaml:"color"`
	Depth  string `yaml:"depth"`
}

// SetFrame records the extent and attachment formats of the run's images.
func (m *Manifest) SetFrame(extent gputypes.Extent3D, colorFormat, depthFormat gputypes.TextureFormat) {
	m.Frame = &FrameInfo{
		Width:  extent.Width,
		Height: extent.Height,
		Color:  colorFormat.String(),
		Depth:  depthFormat.String(),
	}
}

// NewManifest starts the manifest of a run with a fresh run id.
func NewManifest(cfg insitu.Config, ranks int) Manifest {
	return Manifest{
		RunID:   uuid.New().String(),
		Started: time.Now().UTC(),
		Ranks:   ranks,
		Status:  "running",
		Config:  cfg,
	}
}

// Finish records the end of the run.
func (m *Manifest) Finish(images int, err error) {
	m.Finished = time.Now().UTC()
	m.Images = images
	m.Status = "completed"
	if err != nil {
		m.Status = "failed: " + err.Error()
	}
}

// WriteManifest writes m to path as YAML.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // manifest is not secret
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}
