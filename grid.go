package insitu

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// ViewpointGrid is the fixed elevation × azimuth lattice of candidate camera
// locations on a sphere around the origin. Row y is the elevation and
// column x the azimuth; the azimuth axis wraps.
type ViewpointGrid struct {
	rows      int
	cols      int
	radius    float64
	locations []Location
}

// NewViewpointGrid creates a rows × cols lattice of locations at the given
// radius, all looking at the origin.
func NewViewpointGrid(rows, cols int, radius float64, dir Direction) (*ViewpointGrid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: viewpoint grid %dx%d", ErrConfig, rows, cols)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: viewpoint radius %v", ErrConfig, radius)
	}

	g := &ViewpointGrid{
		rows:      rows,
		cols:      cols,
		radius:    radius,
		locations: make([]Location, 0, rows*cols),
	}
	for y := 0; y < rows; y++ {
		theta := math.Pi / 2
		if rows > 1 {
			theta = float64(y) / float64(rows-1) * math.Pi
		}
		for x := 0; x < cols; x++ {
			phi := float64(x) * 2 * math.Pi / float64(cols)
			p := mgl64.Vec3{
				radius * math.Sin(theta) * math.Sin(phi),
				radius * math.Cos(theta),
				radius * math.Sin(theta) * math.Cos(phi),
			}
			g.locations = append(g.locations, NewLocation(y*cols+x, dir, p, mgl64.Vec3{}))
		}
	}
	return g, nil
}

// Rows returns the number of elevation rows.
func (g *ViewpointGrid) Rows() int { return g.rows }

// Cols returns the number of azimuth columns.
func (g *ViewpointGrid) Cols() int { return g.cols }

// Radius returns the sphere radius of the lattice.
func (g *ViewpointGrid) Radius() float64 { return g.radius }

// Len returns the number of locations.
func (g *ViewpointGrid) Len() int { return len(g.locations) }

// Enumerate returns every location in index order. The slice is a copy.
func (g *ViewpointGrid) Enumerate() []Location {
	out := make([]Location, len(g.locations))
	copy(out, g.locations)
	return out
}

// At returns the location with the given index.
func (g *ViewpointGrid) At(index int) Location {
	return g.locations[index]
}

// EntropyGrid holds one entropy value per grid cell, row-major:
// cell (x, y) is Values[y*Cols+x].
type EntropyGrid struct {
	Rows   int
	Cols   int
	Values []float64
}

// NewEntropyGrid wraps values as a rows × cols grid.
func NewEntropyGrid(rows, cols int, values []float64) (EntropyGrid, error) {
	if rows*cols != len(values) {
		return EntropyGrid{}, fmt.Errorf("%w: %d entropies for a %dx%d grid", ErrProtocol, len(values), rows, cols)
	}
	return EntropyGrid{Rows: rows, Cols: cols, Values: values}, nil
}

// At returns the value of cell (x, y).
func (g EntropyGrid) At(x, y int) float64 {
	return g.Values[y*g.Cols+x]
}

// Max returns the index and value of the largest cell, preferring the
// lowest index on ties. An empty grid yields (0, 0).
func (g EntropyGrid) Max() (int, float64) {
	best, bestValue := 0, math.Inf(-1)
	for i, v := range g.Values {
		if v > bestValue {
			best, bestValue = i, v
		}
	}
	if len(g.Values) == 0 {
		return 0, 0
	}
	return best, bestValue
}

// SelectMaxima returns the indices of the k best local maxima of the grid.
//
// A cell is a local maximum when it is strictly greater than each of its
// eight neighbors; x wraps modulo Cols and y neighbors outside the grid are
// skipped. Maxima are ordered by descending entropy. When fewer than k exist
// the last one is repeated; when none exist every slot is 0. The result
// always has length k.
func SelectMaxima(grid EntropyGrid, k int) []int {
	if k <= 0 {
		return nil
	}
	maxima := localMaxima(grid.Values, grid.Cols, grid.Rows, true)
	return padPicks(maxima, k)
}

// localMaxima returns the indices of strict 8-neighbor local maxima of a
// cols × rows row-major grid, sorted by descending value. With wrapX the x
// axis is periodic.
func localMaxima(values []float64, cols, rows int, wrapX bool) []int {
	var maxima []int
	if cols <= 0 || rows <= 0 || len(values) < cols*rows {
		return nil
	}
	for idx := 0; idx < cols*rows; idx++ {
		x := idx % cols
		y := idx / cols
		e := values[idx]
		isMax := true
		for dy := -1; dy <= 1 && isMax; dy++ {
			ny := y + dy
			if ny < 0 || ny >= rows {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx := x + dx
				if wrapX {
					nx = (nx + cols) % cols
				} else if nx < 0 || nx >= cols {
					continue
				}
				n := ny*cols + nx
				if n == idx {
					continue
				}
				if values[n] >= e {
					isMax = false
					break
				}
			}
		}
		if isMax {
			maxima = append(maxima, idx)
		}
	}
	sort.SliceStable(maxima, func(i, j int) bool {
		return values[maxima[i]] > values[maxima[j]]
	})
	return maxima
}

// padPicks truncates or pads picks to exactly k entries.
func padPicks(picks []int, k int) []int {
	out := make([]int, k)
	for i := range out {
		switch {
		case i < len(picks):
			out[i] = picks[i]
		case len(picks) > 0:
			out[i] = picks[len(picks)-1]
		default:
			out[i] = 0
		}
	}
	return out
}
