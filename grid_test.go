package insitu

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func mustGrid(t *testing.T, rows, cols int, values []float64) EntropyGrid {
	t.Helper()
	g, err := NewEntropyGrid(rows, cols, values)
	if err != nil {
		t.Fatalf("NewEntropyGrid() = %v", err)
	}
	return g
}

func TestSelectMaxima(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		values     []float64
		k          int
		want       []int
	}{
		{
			name: "center spike",
			rows: 3, cols: 3,
			values: []float64{1, 5, 1, 2, 9, 2, 1, 5, 1},
			k:      1,
			want:   []int{4},
		},
		{
			name: "spike first regardless of k",
			rows: 3, cols: 3,
			values: []float64{1, 5, 1, 2, 9, 2, 1, 5, 1},
			k:      3,
			want:   []int{4, 4, 4},
		},
		{
			name: "all equal",
			rows: 2, cols: 4,
			values: []float64{3, 3, 3, 3, 3, 3, 3, 3},
			k:      3,
			want:   []int{0, 0, 0},
		},
		{
			name: "empty grid",
			rows: 0, cols: 0,
			values: nil,
			k:      2,
			want:   []int{0, 0},
		},
		{
			name: "two maxima sorted descending",
			rows: 1, cols: 6,
			values: []float64{0, 4, 0, 0, 7, 0},
			k:      3,
			want:   []int{4, 1, 1},
		},
		{
			name: "azimuth wraps at column 0",
			rows: 1, cols: 5,
			// Column 0 would be a maximum without wraparound.
			values: []float64{6, 1, 2, 3, 8},
			k:      1,
			want:   []int{4},
		},
		{
			name: "last column beats column 0",
			rows: 2, cols: 4,
			values: []float64{7, 1, 1, 9, 0, 0, 0, 0},
			k:      2,
			want:   []int{3, 3},
		},
		{
			name: "elevation does not wrap",
			rows: 3, cols: 3,
			values: []float64{9, 0, 0, 0, 0, 0, 0, 0, 8},
			k:      2,
			want:   []int{0, 8},
		},
		{
			name: "single cell",
			rows: 1, cols: 1,
			values: []float64{2},
			k:      2,
			want:   []int{0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGrid(t, tt.rows, tt.cols, tt.values)
			got := SelectMaxima(g, tt.k)
			if !slices.Equal(got, tt.want) {
				t.Errorf("SelectMaxima() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectMaximaAlwaysK(t *testing.T) {
	g := mustGrid(t, 3, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	for k := 0; k < 6; k++ {
		if got := SelectMaxima(g, k); len(got) != k {
			t.Errorf("len(SelectMaxima(k=%d)) = %d", k, len(got))
		}
	}
}

func TestNewEntropyGridMismatch(t *testing.T) {
	_, err := NewEntropyGrid(2, 3, make([]float64, 5))
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("NewEntropyGrid() error = %v, want ErrProtocol", err)
	}
}

func TestEntropyGridMax(t *testing.T) {
	g := mustGrid(t, 2, 2, []float64{1, 4, 4, 2})
	if i, v := g.Max(); i != 1 || v != 4 {
		t.Errorf("Max() = (%d, %v), want (1, 4)", i, v)
	}
}

func TestViewpointGridEnumerate(t *testing.T) {
	g, err := NewViewpointGrid(3, 4, 12, Uni)
	if err != nil {
		t.Fatalf("NewViewpointGrid() = %v", err)
	}
	locs := g.Enumerate()
	if len(locs) != 12 || g.Len() != 12 {
		t.Fatalf("Enumerate() returned %d locations, want 12", len(locs))
	}
	for i, l := range locs {
		if l.Index != i {
			t.Errorf("locs[%d].Index = %d", i, l.Index)
		}
		if math.Abs(l.Position.Len()-12) > 1e-9 {
			t.Errorf("locs[%d] radius = %v, want 12", i, l.Position.Len())
		}
	}
	// Row 0 is the north pole, row 2 the south pole.
	if locs[0].Position.Y() < 11.999 {
		t.Errorf("row 0 position = %v, want north pole", locs[0].Position)
	}
	if locs[8].Position.Y() > -11.999 {
		t.Errorf("row 2 position = %v, want south pole", locs[8].Position)
	}
	// Row 1, column 1 is a quarter turn around +Y from column 0.
	if x := locs[5].Position.X(); math.Abs(x-12) > 1e-9 {
		t.Errorf("locs[5].X = %v, want 12", x)
	}

	// Enumerate returns a copy.
	locs[0].Index = 99
	if g.At(0).Index != 0 {
		t.Error("Enumerate() exposed internal storage")
	}
}

func TestViewpointGridSingleRowIsEquator(t *testing.T) {
	g, err := NewViewpointGrid(1, 4, 5, Omni)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range g.Enumerate() {
		if math.Abs(l.Position.Y()) > 1e-9 {
			t.Errorf("location %d off the equator: %v", l.Index, l.Position)
		}
		if l.Direction != Omni {
			t.Errorf("location %d direction = %v, want omni", l.Index, l.Direction)
		}
	}
}

func TestNewViewpointGridInvalid(t *testing.T) {
	if _, err := NewViewpointGrid(0, 3, 1, Uni); !errors.Is(err, ErrConfig) {
		t.Errorf("NewViewpointGrid(0, 3) error = %v, want ErrConfig", err)
	}
	if _, err := NewViewpointGrid(2, 3, 0, Uni); !errors.Is(err, ErrConfig) {
		t.Errorf("NewViewpointGrid(radius 0) error = %v, want ErrConfig", err)
	}
}

func BenchmarkSelectMaxima(b *testing.B) {
	values := make([]float64, 32*64)
	for i := range values {
		values[i] = math.Sin(float64(i) * 0.37)
	}
	g := EntropyGrid{Rows: 32, Cols: 64, Values: values}
	b.ReportAllocs()
	for b.Loop() {
		_ = SelectMaxima(g, 4)
	}
}
