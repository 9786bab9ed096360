// Package ndvi picks, for every quadrant of a region, the NDVI image with
// the fewest missing pixels among recent acquisitions.
package ndvi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forest-guardian/geoforecast/internal/grid"
	"github.com/forest-guardian/geoforecast/internal/raster"
	"github.com/forest-guardian/geoforecast/internal/sentinel"
	"github.com/paulmach/orb"
)

// Provider returns the NDVI raster of bound for one day. It reports
// sentinel.ErrNoData when nothing was acquired and sentinel.ErrTransient on
// server side failures.
type Provider interface {
	GetImage(ctx context.Context, bound orb.Bound, date time.Time) (*raster.Image, error)
}

type Candidate struct {
	Image       *raster.Image
	Date        time.Time
	NoDataRatio float64
}

const DefaultBackoff = 10 * time.Second

type Selector struct {
	provider Provider
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

func NewSelector(provider Provider, backoff time.Duration, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		provider: provider,
		backoff:  backoff,
		sleep:    sleepContext,
		logger:   logger,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Select scans dates in order and keeps the candidate with the lowest
// no-data ratio; ties keep the earliest date. A ratio of zero ends the scan.
// It returns nil when no date produced an image.
func (s *Selector) Select(ctx context.Context, tile grid.Tile, dates []time.Time) (*Candidate, error) {
	var best *Candidate
	for _, date := range dates {
		day := date.Format("2006-01-02")
		s.logger.Info("processing quadrant", "quadrant", tile.Index, "date", day)

		im, err := s.provider.GetImage(ctx, tile.Bound, date)
		switch {
		case err == nil:
		case errors.Is(err, sentinel.ErrNoData):
			s.logger.Info("no valid data", "quadrant", tile.Index, "date", day)
			continue
		case errors.Is(err, sentinel.ErrTransient):
			s.logger.Warn("server error, waiting before the next date",
				"quadrant", tile.Index, "date", day, "backoff", s.backoff, "error", err)
			if err := s.sleep(ctx, s.backoff); err != nil {
				return best, err
			}
			continue
		default:
			return best, fmt.Errorf("quadrant %d, date %s: %w", tile.Index, day, err)
		}

		ratio := im.NoDataRatio()
		s.logger.Info("image scored", "quadrant", tile.Index, "date", day,
			"empty", fmt.Sprintf("%.2f%%", ratio*100))

		if best == nil || ratio < best.NoDataRatio {
			best = &Candidate{Image: im, Date: date, NoDataRatio: ratio}
		}
		if ratio == 0 {
			s.logger.Info("complete image found", "quadrant", tile.Index, "date", day)
			break
		}
	}
	return best, nil
}
