package raster

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
)

func ignoreWarnings() godal.ErrorHandler {
	return func(ec godal.ErrorCategory, code int, msg string) error {
		if ec <= godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal: %s", msg)
	}
}

// Read loads every band of the raster at path. Band nodata values are
// turned into NaN.
func Read(path string) (*Image, error) {
	ds, err := godal.Open(path, godal.RasterOnly(), godal.ErrLogger(ignoreWarnings()))
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	im := New(st.SizeX, st.SizeY, st.NBands)
	for i, band := range ds.Bands() {
		if err := band.Read(0, 0, im.Data[i], st.SizeX, st.SizeY); err != nil {
			return nil, fmt.Errorf("failed to read band %d of %s: %w", i+1, path, err)
		}
		if nd, ok := band.NoData(); ok && !math.IsNaN(nd) {
			for j, v := range im.Data[i] {
				if float64(v) == nd {
					im.Data[i][j] = float32(math.NaN())
				}
			}
		}
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to read geotransform of %s: %w", path, err)
	}
	im.GeoTransform = gt
	im.Projection = ds.Projection()
	return im, nil
}

// Write stores the image as a Float32 GeoTIFF with NaN as nodata.
func Write(path string, im *Image) error {
	ds, err := godal.Create(godal.GTiff, path, im.Bands(), godal.Float32, im.Width, im.Height,
		godal.CreationOption("COMPRESS=DEFLATE", "TILED=YES"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := ds.SetGeoTransform(im.GeoTransform); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set geotransform: %w", err)
	}
	if im.Projection != "" {
		if err := ds.SetProjection(im.Projection); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set projection: %w", err)
		}
	}
	for i, band := range ds.Bands() {
		if err := band.SetNoData(math.NaN()); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set nodata on band %d: %w", i+1, err)
		}
		if err := band.Write(0, 0, im.Data[i], im.Width, im.Height); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write band %d: %w", i+1, err)
		}
	}

	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
