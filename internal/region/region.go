// Package region loads the area of interest from a vector file.
package region

import (
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrEmpty = errors.New("region has no geometry")

// Load returns the bounding box of every feature of every layer in path.
// Coordinates are expected in EPSG:4326.
func Load(path string) (orb.Bound, error) {
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return orb.Bound{}, fmt.Errorf("failed to open region %s: %w", path, err)
	}
	defer ds.Close()

	var (
		bound orb.Bound
		found bool
	)
	for _, layer := range ds.Layers() {
		for {
			feat := layer.NextFeature()
			if feat == nil {
				break
			}
			b, ok, err := featureBound(feat)
			feat.Close()
			if err != nil {
				return orb.Bound{}, fmt.Errorf("region %s: %w", path, err)
			}
			if !ok {
				continue
			}
			if !found {
				bound, found = b, true
			} else {
				bound = bound.Union(b)
			}
		}
	}
	if !found {
		return orb.Bound{}, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return bound, nil
}

func featureBound(feat *godal.Feature) (orb.Bound, bool, error) {
	geom := feat.Geometry()
	if geom == nil {
		return orb.Bound{}, false, nil
	}
	defer geom.Close()
	if geom.Empty() {
		return orb.Bound{}, false, nil
	}

	raw, err := geom.GeoJSON()
	if err != nil {
		return orb.Bound{}, false, err
	}
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return orb.Bound{}, false, fmt.Errorf("failed to decode geometry: %w", err)
	}
	if g.Coordinates == nil {
		return orb.Bound{}, false, nil
	}
	return g.Coordinates.Bound(), true, nil
}
