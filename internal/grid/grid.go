// Package grid splits a region of interest into square quadrants.
package grid

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
)

type Tile struct {
	Index int
	Bound orb.Bound
}

func (t Tile) String() string {
	return fmt.Sprintf("quadrant %d [%.4f %.4f %.4f %.4f]",
		t.Index, t.Bound.Min.X(), t.Bound.Min.Y(), t.Bound.Max.X(), t.Bound.Max.Y())
}

// Dir is the working directory of the tile below root.
func (t Tile) Dir(root string) string {
	return filepath.Join(root, fmt.Sprintf("quadrant_%d", t.Index))
}

func (t Tile) OutputName(date time.Time) string {
	return fmt.Sprintf("ndvi_quadrant_%d_%s.tif", t.Index, date.Format("2006-01-02"))
}

// Partition covers region with tiles of the given side, row by row from the
// minimum corner. The last tile of each row and column is clipped to the
// region's maximum bound.
func Partition(region orb.Bound, size float64) ([]Tile, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("invalid quadrant size %v", size)
	}

	xs := steps(region.Min.X(), region.Max.X(), size)
	ys := steps(region.Min.Y(), region.Max.Y(), size)

	tiles := make([]Tile, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			tiles = append(tiles, Tile{
				Index: len(tiles),
				Bound: orb.Bound{
					Min: orb.Point{x, y},
					Max: orb.Point{math.Min(x+size, region.Max.X()), math.Min(y+size, region.Max.Y())},
				},
			})
		}
	}
	return tiles, nil
}

// steps returns the origins min, min+size, ... strictly below max.
func steps(min, max, size float64) []float64 {
	n := int(math.Ceil((max - min) / size))
	if n <= 0 {
		return nil
	}
	origins := make([]float64, n)
	for i := range origins {
		origins[i] = min + float64(i)*size
	}
	return origins
}
