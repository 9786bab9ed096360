package ndvi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/geoforecast/internal/grid"
	"github.com/forest-guardian/geoforecast/internal/raster"
	"github.com/forest-guardian/geoforecast/internal/status"
	"github.com/schollz/progressbar/v3"
)

// Sink persists the best candidate of a tile inside dir and returns the
// written file.
type Sink interface {
	Save(tile grid.Tile, best *Candidate, dir string) (string, error)
}

// GeoTIFFSink writes ndvi_quadrant_<i>_<date>.tif, plus a PNG quicklook
// when Preview is set. The GeoTIFF only appears under its final name once
// fully written, a failed quicklook is logged and ignored.
type GeoTIFFSink struct {
	Preview bool
	Logger  *slog.Logger
}

func (s GeoTIFFSink) Save(tile grid.Tile, best *Candidate, dir string) (string, error) {
	finalTiff := filepath.Join(dir, tile.OutputName(best.Date))
	partial := finalTiff + ".part"
	if err := raster.Write(partial, best.Image); err != nil {
		os.Remove(partial)
		return "", err
	}
	if err := os.Rename(partial, finalTiff); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("failed to move %s into place: %w", partial, err)
	}

	if s.Preview {
		png := strings.TrimSuffix(finalTiff, ".tif") + ".png"
		if err := raster.SavePreview(png, best.Image); err != nil {
			logger := s.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("failed to save quicklook", "quadrant", tile.Index, "output", png, "error", err)
		}
	}
	return finalTiff, nil
}

type Summary struct {
	Tiles     int
	Skipped   int
	Processed int
	Written   int
	Empty     int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d quadrants: %d skipped, %d processed, %d written, %d without image",
		s.Tiles, s.Skipped, s.Processed, s.Written, s.Empty)
}

type Processor struct {
	selector  *Selector
	store     status.Store
	sink      Sink
	outputDir string
	progress  bool
	logger    *slog.Logger
}

func NewProcessor(selector *Selector, store status.Store, sink Sink, outputDir string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		selector:  selector,
		store:     store,
		sink:      sink,
		outputDir: outputDir,
		logger:    logger,
	}
}

// WithProgress draws a progress bar over the tiles on stdout.
func (p *Processor) WithProgress(enabled bool) *Processor {
	p.progress = enabled
	return p
}

// Run handles tiles one after the other in index order. Tiles the store
// reports as done are skipped.
func (p *Processor) Run(ctx context.Context, tiles []grid.Tile, dates []time.Time) (Summary, error) {
	summary := Summary{Tiles: len(tiles)}
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return summary, fmt.Errorf("failed to create output directory: %w", err)
	}

	var progressBar *progressbar.ProgressBar
	if p.progress {
		progressBar = progressbar.Default(int64(len(tiles)), "Processing quadrants")
		defer progressBar.Finish()
	}
	advance := func() {
		if progressBar != nil {
			_ = progressBar.Add(1)
		}
	}

	for _, tile := range tiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.processTile(ctx, tile, dates, &summary); err != nil {
			return summary, err
		}
		advance()
	}
	return summary, nil
}

func (p *Processor) processTile(ctx context.Context, tile grid.Tile, dates []time.Time, summary *Summary) error {
	start := time.Now()
	dir := tile.Dir(p.outputDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	st, err := p.store.Status(ctx, tile)
	if err != nil {
		return err
	}
	if st == status.Done {
		p.logger.Info("quadrant already processed, skipping", "quadrant", tile.Index)
		summary.Skipped++
		return nil
	}

	best, err := p.selector.Select(ctx, tile, dates)
	if err != nil {
		return err
	}
	summary.Processed++

	if best == nil {
		p.logger.Warn("no image found for quadrant", "quadrant", tile.Index)
		summary.Empty++
	} else {
		output, err := p.sink.Save(tile, best, dir)
		if err != nil {
			return fmt.Errorf("failed to save quadrant %d: %w", tile.Index, err)
		}
		if err := p.store.MarkDone(ctx, tile, output); err != nil {
			return err
		}
		summary.Written++
		p.logger.Info("best image saved", "quadrant", tile.Index,
			"date", best.Date.Format("2006-01-02"), "empty", fmt.Sprintf("%.2f%%", best.NoDataRatio*100), "output", output)
	}

	p.logger.Info("quadrant finished", "quadrant", tile.Index, "took", fmt.Sprintf("%.2fs", time.Since(start).Seconds()))
	return nil
}
