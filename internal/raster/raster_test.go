package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = float32(math.NaN())

func testImage() *Image {
	// 4x2 pixels of 0.5 degrees starting at (10, 1)
	im := New(4, 2, 1)
	copy(im.Data[0], []float32{
		0.1, 0.2, nan, 0.4,
		0.5, nan, nan, 0.8,
	})
	im.GeoTransform = [6]float64{10, 0.5, 0, 1, 0, -0.5}
	return im
}

func TestNoDataRatio(t *testing.T) {
	assert.Equal(t, 3.0/8.0, testImage().NoDataRatio())

	full := New(2, 2, 2)
	assert.Equal(t, 0.0, full.NoDataRatio())

	assert.Equal(t, 1.0, New(0, 0, 1).NoDataRatio())
}

func TestBound(t *testing.T) {
	b := testImage().Bound()
	assert.Equal(t, orb.Bound{Min: orb.Point{10, 0}, Max: orb.Point{12, 1}}, b)
}

func TestCrop(t *testing.T) {
	im := testImage()

	out, err := im.Crop(orb.Bound{Min: orb.Point{10.5, 0}, Max: orb.Point{11.5, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 2, out.Height)
	assert.Equal(t, [6]float64{10.5, 0.5, 0, 1, 0, -0.5}, out.GeoTransform)
	assert.Equal(t, float32(0.2), out.Data[0][0])
	assert.True(t, math.IsNaN(float64(out.Data[0][1])))
	assert.Equal(t, 3.0/4.0, out.NoDataRatio())

	// partially covered pixels are kept
	out, err = im.Crop(orb.Bound{Min: orb.Point{11.7, 0.6}, Max: orb.Point{13, 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Width)
	assert.Equal(t, 1, out.Height)
	assert.Equal(t, float32(0.4), out.Data[0][0])

	same, err := im.Crop(orb.Bound{Min: orb.Point{9, -1}, Max: orb.Point{13, 2}})
	require.NoError(t, err)
	assert.Same(t, im, same)

	_, err = im.Crop(orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{21, 21}})
	assert.ErrorIs(t, err, ErrOutside)
}

func TestWriteRead(t *testing.T) {
	godal.RegisterAll()
	path := filepath.Join(t.TempDir(), "ndvi.tif")
	im := testImage()

	require.NoError(t, Write(path, im))

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, im.Width, back.Width)
	assert.Equal(t, im.Height, back.Height)
	assert.Equal(t, im.GeoTransform, back.GeoTransform)
	assert.Equal(t, im.NoDataRatio(), back.NoDataRatio())
	assert.Equal(t, float32(0.8), back.Data[0][7])
}

func TestSavePreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndvi.png")
	require.NoError(t, SavePreview(path, testImage()))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, st.Size())

	assert.Error(t, SavePreview(path, New(0, 0, 0)))
}
