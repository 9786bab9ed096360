package status

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/geoforecast/internal/grid"
)

// FSStore treats a quadrant as done when its directory below Root holds a
// finished GeoTIFF.
type FSStore struct {
	Root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root}
}

func (s *FSStore) Status(_ context.Context, tile grid.Tile) (Status, error) {
	entries, err := os.ReadDir(tile.Dir(s.Root))
	if errors.Is(err, fs.ErrNotExist) {
		return Pending, nil
	}
	if err != nil {
		return Pending, fmt.Errorf("failed to list %s: %w", tile.Dir(s.Root), err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".tif") {
			return Done, nil
		}
	}
	return Pending, nil
}

// MarkDone only checks that the output exists, the file is the marker.
func (s *FSStore) MarkDone(_ context.Context, tile grid.Tile, output string) error {
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("output of %s missing: %w", tile, err)
	}
	return nil
}
