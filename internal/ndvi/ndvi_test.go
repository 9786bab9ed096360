package ndvi

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/geoforecast/internal/grid"
	"github.com/forest-guardian/geoforecast/internal/logging"
	"github.com/forest-guardian/geoforecast/internal/raster"
	"github.com/forest-guardian/geoforecast/internal/sentinel"
	"github.com/forest-guardian/geoforecast/internal/status"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// imageWithEmpty builds a 2x2 image with the first n pixels missing.
func imageWithEmpty(n int) *raster.Image {
	im := raster.New(2, 2, 1)
	for i := range im.Data[0] {
		if i < n {
			im.Data[0][i] = float32(math.NaN())
		} else {
			im.Data[0][i] = 0.6
		}
	}
	im.GeoTransform = [6]float64{0, 0.5, 0, 1, 0, -0.5}
	return im
}

type result struct {
	empty int
	err   error
}

type fakeProvider struct {
	results   map[string]result
	requested []string
}

func (f *fakeProvider) GetImage(_ context.Context, _ orb.Bound, date time.Time) (*raster.Image, error) {
	day := date.Format("2006-01-02")
	f.requested = append(f.requested, day)
	r, ok := f.results[day]
	if !ok {
		return nil, sentinel.ErrNoData
	}
	if r.err != nil {
		return nil, r.err
	}
	return imageWithEmpty(r.empty), nil
}

func days(n int) []time.Time {
	return LastDays(time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC), n)
}

func newTestSelector(p Provider) (*Selector, *[]time.Duration) {
	var sleeps []time.Duration
	s := NewSelector(p, DefaultBackoff, logging.Discard())
	s.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func TestLastDays(t *testing.T) {
	now := time.Date(2025, 3, 27, 15, 4, 5, 0, time.FixedZone("BRT", -3*3600))
	dates := LastDays(now, 15)
	require.Len(t, dates, 15)
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2025, 3, 27, 0, 0, 0, 0, time.UTC), dates[14])
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, 24*time.Hour, dates[i].Sub(dates[i-1]))
	}
	assert.Empty(t, LastDays(now, 0))
}

func TestSelectKeepsLowestRatio(t *testing.T) {
	// 2025-03-01 .. 2025-03-05
	p := &fakeProvider{results: map[string]result{
		"2025-03-01": {empty: 3},
		"2025-03-02": {empty: 1},
		"2025-03-03": {empty: 2},
		"2025-03-04": {empty: 1},
		"2025-03-05": {empty: 4},
	}}
	s, _ := newTestSelector(p)

	best, err := s.Select(context.Background(), grid.Tile{Index: 0}, days(5))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 0.25, best.NoDataRatio)
	// tie with 03-04 keeps the earliest
	assert.Equal(t, "2025-03-02", best.Date.Format("2006-01-02"))
	assert.Len(t, p.requested, 5)
}

func TestSelectStopsOnCompleteImage(t *testing.T) {
	p := &fakeProvider{results: map[string]result{
		"2025-03-01": {empty: 2},
		"2025-03-02": {empty: 0},
		"2025-03-03": {empty: 0},
	}}
	s, _ := newTestSelector(p)

	best, err := s.Select(context.Background(), grid.Tile{Index: 0}, days(5))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 0.0, best.NoDataRatio)
	assert.Equal(t, "2025-03-02", best.Date.Format("2006-01-02"))
	assert.Equal(t, []string{"2025-03-01", "2025-03-02"}, p.requested)
}

func TestSelectFirstSuccessIsRetainedEvenWhenEmpty(t *testing.T) {
	p := &fakeProvider{results: map[string]result{
		"2025-03-03": {empty: 4},
	}}
	s, _ := newTestSelector(p)

	best, err := s.Select(context.Background(), grid.Tile{Index: 0}, days(5))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 1.0, best.NoDataRatio)
}

func TestSelectSkipsMissingAndTransientDates(t *testing.T) {
	transient := errors.Join(sentinel.ErrTransient, errors.New("502 bad gateway"))
	p := &fakeProvider{results: map[string]result{
		"2025-03-02": {err: transient},
		"2025-03-03": {empty: 1},
		"2025-03-04": {err: transient},
	}}
	s, sleeps := newTestSelector(p)

	best, err := s.Select(context.Background(), grid.Tile{Index: 2}, days(5))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "2025-03-03", best.Date.Format("2006-01-02"))
	// every date asked exactly once, failed dates are not retried
	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05"}, p.requested)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, *sleeps)
}

func TestSelectNothingFound(t *testing.T) {
	p := &fakeProvider{}
	s, _ := newTestSelector(p)

	best, err := s.Select(context.Background(), grid.Tile{Index: 0}, days(15))
	require.NoError(t, err)
	assert.Nil(t, best)
	assert.Len(t, p.requested, 15)
}

func TestSelectPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("disk full")
	p := &fakeProvider{results: map[string]result{
		"2025-03-02": {err: boom},
	}}
	s, _ := newTestSelector(p)

	_, err := s.Select(context.Background(), grid.Tile{Index: 0}, days(5))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, p.requested, 2)
}

func TestSelectBackoffHonoursCancel(t *testing.T) {
	p := &fakeProvider{results: map[string]result{
		"2025-03-01": {err: sentinel.ErrTransient},
	}}
	s := NewSelector(p, time.Hour, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Select(ctx, grid.Tile{Index: 0}, days(5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.requested, 1)
}

// fileSink writes a placeholder .tif so the filesystem store sees the tile
// as done.
type fileSink struct {
	saved []int
}

func (f *fileSink) Save(tile grid.Tile, best *Candidate, dir string) (string, error) {
	f.saved = append(f.saved, tile.Index)
	path := filepath.Join(dir, tile.OutputName(best.Date))
	return path, os.WriteFile(path, []byte("tif"), 0644)
}

func TestProcessorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	region := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2.5, 1.2}}
	tiles, err := grid.Partition(region, 1)
	require.NoError(t, err)

	p := &fakeProvider{results: map[string]result{"2025-03-04": {empty: 1}}}
	s, _ := newTestSelector(p)
	sink := &fileSink{}
	proc := NewProcessor(s, status.NewFSStore(root), sink, root, logging.Discard())

	summary, err := proc.Run(ctx, tiles, days(5))
	require.NoError(t, err)
	assert.Equal(t, Summary{Tiles: 6, Processed: 6, Written: 6}, summary)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, sink.saved)
	assert.FileExists(t, filepath.Join(root, "quadrant_5", "ndvi_quadrant_5_2025-03-04.tif"))

	p.requested = nil
	summary, err = proc.Run(ctx, tiles, days(5))
	require.NoError(t, err)
	assert.Equal(t, Summary{Tiles: 6, Skipped: 6}, summary)
	assert.Empty(t, p.requested)
	assert.Len(t, sink.saved, 6)
}

func TestProcessorLeavesEmptyTilesPending(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	tiles := []grid.Tile{{Index: 0, Bound: orb.Bound{Max: orb.Point{1, 1}}}}

	p := &fakeProvider{}
	s, _ := newTestSelector(p)
	sink := &fileSink{}
	store := status.NewFSStore(root)
	proc := NewProcessor(s, store, sink, root, logging.Discard())

	summary, err := proc.Run(ctx, tiles, days(3))
	require.NoError(t, err)
	assert.Equal(t, Summary{Tiles: 1, Processed: 1, Empty: 1}, summary)
	assert.Empty(t, sink.saved)
	assert.DirExists(t, tiles[0].Dir(root))

	st, err := store.Status(ctx, tiles[0])
	require.NoError(t, err)
	assert.Equal(t, status.Pending, st)
}

func TestProcessorWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := status.NewSQLiteStore(ctx, filepath.Join(root, "status.db"))
	require.NoError(t, err)
	defer store.Close()

	tiles := []grid.Tile{{Index: 0}, {Index: 1}}
	require.NoError(t, store.MarkDone(ctx, tiles[0], "elsewhere.tif"))

	p := &fakeProvider{results: map[string]result{"2025-03-01": {empty: 0}}}
	s, _ := newTestSelector(p)
	sink := &fileSink{}

	summary, err := NewProcessor(s, store, sink, root, logging.Discard()).Run(ctx, tiles, days(3))
	require.NoError(t, err)
	assert.Equal(t, Summary{Tiles: 2, Skipped: 1, Processed: 1, Written: 1}, summary)
	assert.Equal(t, []int{1}, sink.saved)
	assert.Equal(t, []string{"2025-03-01"}, p.requested)
}

func TestGeoTIFFSink(t *testing.T) {
	godal.RegisterAll()
	dir := t.TempDir()
	tile := grid.Tile{Index: 4}
	best := &Candidate{Image: imageWithEmpty(1), Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), NoDataRatio: 0.25}

	output, err := GeoTIFFSink{Preview: true}.Save(tile, best, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ndvi_quadrant_4_2025-03-04.tif"), output)
	assert.FileExists(t, filepath.Join(dir, "ndvi_quadrant_4_2025-03-04.png"))

	back, err := raster.Read(output)
	require.NoError(t, err)
	assert.Equal(t, 0.25, back.NoDataRatio())
}

func TestGeoTIFFSinkLeavesOnlyFinishedFiles(t *testing.T) {
	godal.RegisterAll()
	ctx := context.Background()
	root := t.TempDir()
	tile := grid.Tile{Index: 2}
	dir := tile.Dir(root)
	require.NoError(t, os.MkdirAll(dir, 0755))
	best := &Candidate{Image: imageWithEmpty(0), Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}

	// a directory in the way makes the quicklook fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ndvi_quadrant_2_2025-03-04.png"), 0755))

	output, err := GeoTIFFSink{Preview: true, Logger: logging.Discard()}.Save(tile, best, dir)
	require.NoError(t, err)
	assert.FileExists(t, output)
	assert.NoFileExists(t, output+".part")

	st, err := status.NewFSStore(root).Status(ctx, tile)
	require.NoError(t, err)
	assert.Equal(t, status.Done, st)
}

func TestFSStoreIgnoresPartialOutput(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	tile := grid.Tile{Index: 1}
	require.NoError(t, os.MkdirAll(tile.Dir(root), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tile.Dir(root), "ndvi_quadrant_1_2025-03-04.tif.part"), []byte("tif"), 0644))

	st, err := status.NewFSStore(root).Status(ctx, tile)
	require.NoError(t, err)
	assert.Equal(t, status.Pending, st)
}
