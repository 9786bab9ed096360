package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/forest-guardian/geoforecast/internal/raster"
	"github.com/paulmach/orb"
)

// GetImage downloads the NDVI raster of bound for one day and clips it to
// bound. A raster without a single valid pixel counts as ErrNoData.
func (c *Client) GetImage(ctx context.Context, bound orb.Bound, date time.Time) (*raster.Image, error) {
	imageBytes, err := c.RequestImage(ctx, bound, date)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "ndvi-*.tif")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(imageBytes); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write image file: %w", err)
	}

	im, err := raster.Read(tmp.Name())
	if err != nil {
		return nil, err
	}
	clipped, err := im.Crop(bound)
	if errors.Is(err, raster.ErrOutside) {
		return nil, fmt.Errorf("%w: response does not cover the tile", ErrNoData)
	}
	if err != nil {
		return nil, err
	}

	if clipped.NoDataRatio() == 1 {
		return nil, fmt.Errorf("%w: every pixel is empty", ErrNoData)
	}
	return clipped, nil
}
