// Package spectral computes band-ratio indices and threshold masks.
package spectral

import (
	"math"

	"surfacewater/internal/models"
)

// NormalizedDifference returns (a - b) / (a + b) as a single band named out.
// Pixels invalid in either input, or with a + b == 0, are masked.
func NormalizedDifference(img *models.Raster, a, b, out string) (*models.Raster, error) {
	sel, err := img.Select(a, b)
	if err != nil {
		return nil, err
	}
	da, _ := sel.Band(a)
	db, _ := sel.Band(b)

	n := sel.Len()
	data := make([]float64, n)
	keep := make([]bool, n)
	for i := 0; i < n; i++ {
		if !sel.ValidFor(a, i) || !sel.ValidFor(b, i) || da[i]+db[i] == 0 {
			data[i] = math.NaN()
			continue
		}
		data[i] = (da[i] - db[i]) / (da[i] + db[i])
		keep[i] = true
	}

	res := models.NewRaster(sel.Width, sel.Height, sel.Georef).MustWithBand(out, data)
	return res.UpdateMask(keep)
}

// NDWI is the green/near-infrared normalized difference water index
func NDWI(img *models.Raster, green, nir string) (*models.Raster, error) {
	return NormalizedDifference(img, green, nir, "NDWI")
}

// Threshold returns a 0/1 band named out that is 1 where band exceeds
// threshold. The result keeps the input mask.
func Threshold(img *models.Raster, band string, threshold float64, out string) (*models.Raster, error) {
	sel, err := img.Select(band)
	if err != nil {
		return nil, err
	}
	src, _ := sel.Band(band)
	data := make([]float64, len(src))
	keep := make([]bool, len(src))
	for i, v := range src {
		if !sel.ValidFor(band, i) {
			data[i] = math.NaN()
			continue
		}
		if v > threshold {
			data[i] = 1
		}
		keep[i] = true
	}
	res := models.NewRaster(sel.Width, sel.Height, sel.Georef).MustWithBand(out, data)
	return res.UpdateMask(keep)
}
