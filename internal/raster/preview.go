package raster

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// SavePreview renders the first band as a red-yellow-green NDVI ramp over
// [-1,1]. Missing pixels stay transparent.
func SavePreview(path string, im *Image) error {
	if im.Bands() == 0 || im.Width == 0 || im.Height == 0 {
		return fmt.Errorf("empty image")
	}
	dc := gg.NewContext(im.Width, im.Height)
	band := im.Data[0]
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			v := float64(band[y*im.Width+x])
			if math.IsNaN(v) {
				continue
			}
			r, g, b := ndviColor(v)
			dc.SetRGB(r, g, b)
			dc.SetPixel(x, y)
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}

func ndviColor(v float64) (r, g, b float64) {
	t := (math.Max(-1, math.Min(1, v)) + 1) / 2
	if t < 0.5 {
		return 0.8, 0.1 + 1.6*t*0.8, 0.1
	}
	return 0.8 - (t-0.5)*1.6*0.7, 0.8 - (t-0.5)*0.5, 0.1
}
