// Package raster holds single or multi band float rasters in memory together
// with their georeferencing.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Image stores band-sequential float32 pixels, NaN marks missing data.
type Image struct {
	Width, Height int
	// Data[band][row*Width+col]
	Data         [][]float32
	GeoTransform [6]float64
	Projection   string
}

func New(width, height, bands int) *Image {
	data := make([][]float32, bands)
	for b := range data {
		data[b] = make([]float32, width*height)
	}
	return &Image{Width: width, Height: height, Data: data}
}

func (im *Image) Bands() int {
	return len(im.Data)
}

// NoDataRatio is the share of NaN samples over all bands, in [0,1].
// An image without samples counts as fully empty.
func (im *Image) NoDataRatio() float64 {
	total, missing := 0, 0
	for _, band := range im.Data {
		total += len(band)
		for _, v := range band {
			if math.IsNaN(float64(v)) {
				missing++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(missing) / float64(total)
}

// Bound is the extent covered by the image.
func (im *Image) Bound() orb.Bound {
	gt := im.GeoTransform
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + float64(im.Width)*gt[1]
	y1 := gt[3] + float64(im.Height)*gt[5]
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

var ErrOutside = errors.New("window does not intersect the image")

// snap absorbs floating point noise when bounds fall on pixel edges
const snap = 1e-6

// Crop returns the pixel window covering b. Pixels are kept whole, so the
// result may extend slightly past b on partially covered edges.
func (im *Image) Crop(b orb.Bound) (*Image, error) {
	gt := im.GeoTransform
	if gt[2] != 0 || gt[4] != 0 {
		return nil, fmt.Errorf("rotated geotransforms are not supported")
	}
	if gt[1] == 0 || gt[5] == 0 {
		return nil, fmt.Errorf("invalid geotransform %v", gt)
	}

	c0 := (b.Min.X() - gt[0]) / gt[1]
	c1 := (b.Max.X() - gt[0]) / gt[1]
	r0 := (b.Max.Y() - gt[3]) / gt[5]
	r1 := (b.Min.Y() - gt[3]) / gt[5]
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	if r0 > r1 {
		r0, r1 = r1, r0
	}

	col0 := clamp(int(math.Floor(c0+snap)), 0, im.Width)
	col1 := clamp(int(math.Ceil(c1-snap)), 0, im.Width)
	row0 := clamp(int(math.Floor(r0+snap)), 0, im.Height)
	row1 := clamp(int(math.Ceil(r1-snap)), 0, im.Height)
	if col1 <= col0 || row1 <= row0 {
		return nil, ErrOutside
	}
	if col0 == 0 && row0 == 0 && col1 == im.Width && row1 == im.Height {
		return im, nil
	}

	out := New(col1-col0, row1-row0, im.Bands())
	for b, band := range im.Data {
		for row := row0; row < row1; row++ {
			copy(out.Data[b][(row-row0)*out.Width:(row-row0+1)*out.Width], band[row*im.Width+col0:row*im.Width+col1])
		}
	}
	out.GeoTransform = [6]float64{
		gt[0] + float64(col0)*gt[1], gt[1], 0,
		gt[3] + float64(row0)*gt[5], 0, gt[5],
	}
	out.Projection = im.Projection
	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
