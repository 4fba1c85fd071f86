// Package telemetry records the per-step measurements of an in-situ run as
// CSV series, one file per measurement, and a YAML manifest of the run.
package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gogpu/insitu"
)

// Series file names.
const (
	PathLengthFile     = "path_length.csv"
	PathCalcTimeFile   = "path_calc_time.csv"
	NumImagesFile      = "num_images.csv"
	ViewpointFile      = "viewpoint.csv"
	FrameEntropiesFile = "frame_entropies.csv"
	ZoomEntropiesFile  = "zoom_entropies.csv"
	ProcTimeFile       = "proc_time.csv"
	PathEntropiesFile  = "path_entropies.csv"
)

var headers = map[string][]string{
	PathLengthFile:     {"step", "route", "camera_length", "focus_length"},
	PathCalcTimeFile:   {"step", "routes", "elapsed_s", "cumulative_s"},
	NumImagesFile:      {"step", "images"},
	ViewpointFile:      {"step", "index", "x", "y", "z"},
	FrameEntropiesFile: {"step", "entropies"},
	ZoomEntropiesFile:  {"step", "candidate", "entropies"},
	ProcTimeFile:       {"step", "entropy_s", "focus_s", "zoom_s"},
	PathEntropiesFile:  {"step", "route", "entropy"},
}

type series struct {
	f *os.File
	w *csv.Writer
}

// Recorder is an insitu.Telemetry writing CSV series into a directory.
// Write failures are logged and do not interrupt the run.
type Recorder struct {
	mu         sync.Mutex
	dir        string
	series     map[string]*series
	cumulative float64
	images     int
	entropies  []float64
}

var _ insitu.Telemetry = (*Recorder)(nil)

// NewRecorder creates dir and opens every series with its header row.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	r := &Recorder{dir: dir, series: make(map[string]*series, len(headers))}
	for name, header := range headers {
		f, err := os.Create(filepath.Join(dir, name)) //nolint:gosec // fixed names in the configured dir
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		s := &series{f: f, w: csv.NewWriter(f)}
		r.series[name] = s
		if err := s.w.Write(header); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to write %s header: %w", name, err)
		}
	}
	return r, nil
}

// Dir returns the output directory.
func (r *Recorder) Dir() string { return r.dir }

// TotalImages returns the total image count reported so far.
func (r *Recorder) TotalImages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.images
}

// MaxEntropies returns the highest viewpoint entropy of each keyframe, in
// keyframe order.
func (r *Recorder) MaxEntropies() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.entropies...)
}

func (r *Recorder) write(name string, row ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[name]
	if !ok {
		return
	}
	if err := s.w.Write(row); err != nil {
		insitu.Logger().Warn("failed to write telemetry", "file", name, "err", err)
	}
}

// Viewpoint implements insitu.Telemetry.
func (r *Recorder) Viewpoint(step int, loc insitu.Location) {
	r.write(ViewpointFile, itoa(step), itoa(loc.Index),
		ftoa(loc.Position.X()), ftoa(loc.Position.Y()), ftoa(loc.Position.Z()))
}

// FrameEntropies implements insitu.Telemetry.
func (r *Recorder) FrameEntropies(step int, entropies []float64) {
	r.write(FrameEntropiesFile, append([]string{itoa(step)}, ftoas(entropies)...)...)

	best := 0.0
	for _, e := range entropies {
		best = max(best, e)
	}
	r.mu.Lock()
	r.entropies = append(r.entropies, best)
	r.mu.Unlock()
}

// ZoomEntropies implements insitu.Telemetry.
func (r *Recorder) ZoomEntropies(step, candidate int, entropies []float64) {
	r.write(ZoomEntropiesFile, append([]string{itoa(step), itoa(candidate)}, ftoas(entropies)...)...)
}

// Routes implements insitu.Telemetry.
func (r *Recorder) Routes(step int, routes []insitu.Route) {
	var elapsed float64
	for _, rt := range routes {
		r.write(PathLengthFile, itoa(step), itoa(rt.ID), ftoa(rt.Stats.CameraLength), ftoa(rt.Stats.FocusLength))
		elapsed += rt.Stats.Elapsed.Seconds()
	}
	r.mu.Lock()
	r.cumulative += elapsed
	cumulative := r.cumulative
	r.mu.Unlock()
	r.write(PathCalcTimeFile, itoa(step), itoa(len(routes)), ftoa(elapsed), ftoa(cumulative))
}

// ProcTimes implements insitu.Telemetry.
func (r *Recorder) ProcTimes(step int, t insitu.ProcTimes) {
	r.write(ProcTimeFile, itoa(step),
		ftoa(t.Entropy.Seconds()), ftoa(t.Focus.Seconds()), ftoa(t.Zoom.Seconds()))
}

// PathEntropies implements insitu.Telemetry.
func (r *Recorder) PathEntropies(step, route int, entropy float64) {
	r.write(PathEntropiesFile, itoa(step), itoa(route), ftoa(entropy))
}

// Images implements insitu.Telemetry.
func (r *Recorder) Images(step, n int) {
	r.mu.Lock()
	r.images += n
	r.mu.Unlock()
	r.write(NumImagesFile, itoa(step), itoa(n))
}

// Flush writes buffered rows to disk.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, s := range r.series {
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every series.
func (r *Recorder) Close() error {
	errs := []error{r.Flush()}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.series {
		if err := s.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	r.series = nil
	return errors.Join(errs...)
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }

func ftoas(vs []float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = ftoa(v)
	}
	return out
}
