package telemetry

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/insitu"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // test file in TempDir
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRecorderSeries(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder() = %v", err)
	}

	r.Viewpoint(10, insitu.Location{Index: 4, Position: mgl64.Vec3{1, 2, 3}})
	r.FrameEntropies(10, []float64{0.5, 2.25})
	r.ZoomEntropies(10, 1, []float64{1, 2, 3})
	r.Routes(10, []insitu.Route{
		{ID: 0, Stats: insitu.PathStats{CameraLength: 3.5, FocusLength: 1, Elapsed: time.Second}},
		{ID: 1, Stats: insitu.PathStats{CameraLength: 4, FocusLength: 0, Elapsed: time.Second}},
	})
	r.Routes(20, []insitu.Route{{ID: 0, Stats: insitu.PathStats{Elapsed: time.Second}}})
	r.ProcTimes(10, insitu.ProcTimes{Entropy: 2 * time.Second})
	r.PathEntropies(11, 3, 1.5)
	r.PathEntropies(12, 3, 0.25)
	r.Images(10, 5)
	r.Images(20, 7)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	tests := []struct {
		file string
		row  int
		want []string
	}{
		{ViewpointFile, 1, []string{"10", "4", "1", "2", "3"}},
		{FrameEntropiesFile, 1, []string{"10", "0.5", "2.25"}},
		{ZoomEntropiesFile, 1, []string{"10", "1", "1", "2", "3"}},
		{PathLengthFile, 2, []string{"10", "1", "4", "0"}},
		{PathCalcTimeFile, 2, []string{"20", "1", "1", "3"}},
		{ProcTimeFile, 1, []string{"10", "2", "0", "0"}},
		{NumImagesFile, 2, []string{"20", "7"}},
		{PathEntropiesFile, 2, []string{"12", "3", "0.25"}},
	}
	for _, tt := range tests {
		rows := readCSV(t, filepath.Join(dir, tt.file))
		if len(rows) <= tt.row {
			t.Errorf("%s has %d rows, want > %d", tt.file, len(rows), tt.row)
			continue
		}
		if got := rows[tt.row]; len(got) != len(tt.want) {
			t.Errorf("%s row %d = %v, want %v", tt.file, tt.row, got, tt.want)
		} else {
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("%s row %d = %v, want %v", tt.file, tt.row, got, tt.want)
					break
				}
			}
		}
		if rows[0][0] != "step" {
			t.Errorf("%s header = %v", tt.file, rows[0])
		}
	}

	if r.TotalImages() != 12 {
		t.Errorf("TotalImages() = %d, want 12", r.TotalImages())
	}
	if got := r.MaxEntropies(); len(got) != 1 || got[0] != 2.25 {
		t.Errorf("MaxEntropies() = %v, want [2.25]", got)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	cfg := insitu.DefaultConfig()
	cfg.Grid.Rows = 7
	m := NewManifest(cfg, 4)
	if _, err := uuid.Parse(m.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", m.RunID, err)
	}
	m.SetFrame(gputypes.NewExtent2D(64, 48), gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatDepth32Float)
	m.Finish(123, nil)

	path := filepath.Join(t.TempDir(), ManifestFile)
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest() = %v", err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() = %v", err)
	}
	if got.RunID != m.RunID || got.Images != 123 || got.Ranks != 4 || got.Status != "completed" {
		t.Errorf("ReadManifest() = %+v", got)
	}
	if got.Frame == nil || got.Frame.Width != 64 || got.Frame.Height != 48 ||
		got.Frame.Color != gputypes.TextureFormatRGBA8Unorm.String() {
		t.Errorf("Frame = %+v, want 64x48 %v", got.Frame, gputypes.TextureFormatRGBA8Unorm)
	}
	if got.Config.Grid.Rows != 7 {
		t.Errorf("Config.Grid.Rows = %d, want 7", got.Config.Grid.Rows)
	}
	if !got.Finished.After(got.Started) && !got.Finished.Equal(got.Started) {
		t.Errorf("Finished %v before Started %v", got.Finished, got.Started)
	}
}

func TestManifestFailure(t *testing.T) {
	m := NewManifest(insitu.DefaultConfig(), 1)
	m.Finish(0, errors.New("interrupted"))
	if m.Status != "failed: interrupted" {
		t.Errorf("Status = %q", m.Status)
	}
}

func TestNewRecorderBadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecorder(filepath.Join(file, "sub")); err == nil {
		t.Error("NewRecorder() under a file = nil, want error")
	}
}
