// Package glcm derives gray-level co-occurrence texture bands (entropy,
// variance, dissimilarity) from a single image band.
package glcm

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/engine"
	"surfacewater/pkg/geo"
)

const levels = 256

// Options configures texture extraction
type Options struct {
	// Band is the source band, PC1 by default
	Band string

	// WindowSize is the odd side length of the neighbourhood, 3 by default
	WindowSize int

	// Scale is the resolution of the min/max reduction used for normalization
	Scale float64

	// FallbackMin and FallbackMax replace the band range when the reduction
	// over the region yields nothing
	FallbackMin float64
	FallbackMax float64

	// FailOnEmpty turns an empty range reduction into an InsufficientDataError
	// instead of using the fallback range
	FailOnEmpty bool

	// Parallelism bounds how many dates are processed at once
	Parallelism int
}

// DefaultOptions mirrors the normalization of the source workflow
func DefaultOptions() Options {
	return Options{
		Band:        "PC1",
		WindowSize:  3,
		Scale:       10,
		FallbackMin: -2,
		FallbackMax: 2,
		Parallelism: 4,
	}
}

// Suffixes of the derived bands
const (
	EntropySuffix       = "_ent"
	VarianceSuffix      = "_var"
	DissimilaritySuffix = "_diss"
)

// TextureBands returns the names of the bands Texture derives from band
func TextureBands(band string) []string {
	return []string{band + EntropySuffix, band + VarianceSuffix, band + DissimilaritySuffix}
}

// offsets are the four standard directions: 0°, 45°, 90°, 135°
var offsets = [4][2]int{{1, 0}, {1, -1}, {0, -1}, {-1, -1}}

// Texture clips img to region, normalizes band to 8 bits using its range over
// region, and computes entropy, variance and dissimilarity of the symmetric
// co-occurrence matrix in a sliding window around every pixel. The result has
// bands <band>_ent, <band>_var and <band>_diss.
func Texture(ctx context.Context, eng engine.Engine, img *models.Raster, band string, region *geo.Region, opts Options) (*models.Raster, error) {
	if opts.WindowSize == 0 {
		opts.WindowSize = 3
	}
	if opts.WindowSize < 3 || opts.WindowSize%2 == 0 {
		return nil, apperr.InvalidInput("glcm", "window size must be odd and at least 3, got %d", opts.WindowSize)
	}
	selected, err := img.Select(band)
	if err != nil {
		return nil, apperr.InvalidInput("glcm", "%v", err)
	}

	clipped := selected
	if region != nil {
		clipped = selected.Clip(region)
	}

	r, err := NormalizationRange(ctx, eng, clipped, band, region, opts)
	if err != nil {
		return nil, err
	}

	quantized := Quantize(clipped, band, r.Min, r.Max)

	ent, variance, diss, keep := textures(ctx, quantized, clipped, band, clipped.Width, clipped.Height, opts.WindowSize/2)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := models.NewRaster(clipped.Width, clipped.Height, clipped.Georef).
		MustWithBand(band+EntropySuffix, ent).
		MustWithBand(band+VarianceSuffix, variance).
		MustWithBand(band+DissimilaritySuffix, diss)
	return out.UpdateMask(keep)
}

// NormalizationRange reduces band to its min/max over region. When the
// reduction is empty the configured fallback range is used, or an
// InsufficientDataError is returned if FailOnEmpty is set.
func NormalizationRange(ctx context.Context, eng engine.Engine, img *models.Raster, band string, region *geo.Region, opts Options) (models.Range, error) {
	ranges, err := eng.MinMax(ctx, img, region, opts.Scale)
	if err != nil {
		return models.Range{}, errors.Wrapf(err, "glcm: range of %s", band)
	}
	r, ok := ranges[band]
	if !ok {
		if opts.FailOnEmpty {
			return models.Range{}, apperr.InsufficientData("glcm", band)
		}
		return models.Range{Min: opts.FallbackMin, Max: opts.FallbackMax}, nil
	}
	return r, nil
}

// Quantize rescales band linearly from [lo, hi] to [0, 255] and truncates to
// integer gray levels, clamping values outside the range. Invalid pixels get
// -1. A degenerate range maps every valid pixel to 0.
func Quantize(img *models.Raster, band string, lo, hi float64) []int {
	data, _ := img.Band(band)
	out := make([]int, len(data))
	span := hi - lo
	for i, v := range data {
		if !img.ValidFor(band, i) {
			out[i] = -1
			continue
		}
		if span <= 0 {
			out[i] = 0
			continue
		}
		scaled := (v - lo) / span * (levels - 1)
		scaled = math.Max(0, math.Min(levels-1, scaled))
		out[i] = int(scaled)
	}
	return out
}

// textures computes the three measures for every valid pixel. Each direction
// builds its own normalized histogram and the measures are averaged over the
// directions that produced at least one pair.
func textures(ctx context.Context, gray []int, img *models.Raster, band string, width, height, radius int) (ent, variance, diss []float64, keep []bool) {
	n := width * height
	ent = make([]float64, n)
	variance = make([]float64, n)
	diss = make([]float64, n)
	keep = make([]bool, n)

	hist := newHistogram()
	for y := 0; y < height; y++ {
		if ctx.Err() != nil {
			return
		}
		for x := 0; x < width; x++ {
			i := y*width + x
			if gray[i] < 0 {
				ent[i], variance[i], diss[i] = math.NaN(), math.NaN(), math.NaN()
				continue
			}

			var sumEnt, sumVar, sumDiss float64
			directions := 0
			for _, off := range offsets {
				hist.reset()
				for wy := y - radius; wy <= y+radius; wy++ {
					for wx := x - radius; wx <= x+radius; wx++ {
						nx, ny := wx+off[0], wy+off[1]
						if nx < x-radius || nx > x+radius || ny < y-radius || ny > y+radius {
							continue
						}
						if wx < 0 || wy < 0 || wx >= width || wy >= height {
							continue
						}
						if nx < 0 || ny < 0 || nx >= width || ny >= height {
							continue
						}
						a, b := gray[wy*width+wx], gray[ny*width+nx]
						if a < 0 || b < 0 {
							continue
						}
						hist.addSymmetric(a, b)
					}
				}
				if hist.total == 0 {
					continue
				}
				e, v, d := hist.measures()
				sumEnt += e
				sumVar += v
				sumDiss += d
				directions++
			}

			if directions == 0 {
				ent[i], variance[i], diss[i] = math.NaN(), math.NaN(), math.NaN()
				continue
			}
			ent[i] = sumEnt / float64(directions)
			variance[i] = sumVar / float64(directions)
			diss[i] = sumDiss / float64(directions)
			keep[i] = true
		}
	}
	return
}
