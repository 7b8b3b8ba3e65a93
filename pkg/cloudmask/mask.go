// Package cloudmask removes cloud, cloud shadow and cirrus pixels flagged in a
// Sentinel-2 scene classification layer (SCL).
package cloudmask

import (
	"math"

	"surfacewater/internal/models"
)

// SCL codes flagged as invalid by default
const (
	CloudShadow = 3
	HighCloud   = 9
	Cirrus      = 10
)

// Options controls which classes are masked and how far the mask grows
type Options struct {
	// Codes are the classification values treated as invalid
	Codes []int

	// RadiusMeters is the dilation radius of the invalid region
	RadiusMeters float64
}

// DefaultOptions masks shadow, high cloud and cirrus, dilated by 30 m
func DefaultOptions() Options {
	return Options{
		Codes:        []int{CloudShadow, HighCloud, Cirrus},
		RadiusMeters: 30,
	}
}

// MaskClouds returns the image with flagged pixels, dilated by a circular
// structuring element, removed from its validity mask. Mixed pixels along
// cloud edges fall inside the dilation. With no flagged pixels the mask is
// returned unchanged. A missing classification band masks nothing.
func MaskClouds(img *models.Raster, classBand string, opts Options) *models.Raster {
	flagged := flag(img, classBand, opts.Codes)
	if flagged == nil {
		return img
	}

	invalid := dilate(flagged, img.Width, img.Height, disk(opts.RadiusMeters, img.Georef.PixelSize))

	keep := make([]bool, len(invalid))
	for i, bad := range invalid {
		keep[i] = !bad
	}
	out, err := img.UpdateMask(keep)
	if err != nil {
		// keep is built from the image's own dimensions
		panic(err)
	}
	return out
}

// CoveragePercent returns the share of valid pixels flagged before dilation
func CoveragePercent(img *models.Raster, classBand string, opts Options) float64 {
	flagged := flag(img, classBand, opts.Codes)
	if flagged == nil {
		return 0
	}
	valid, bad := 0, 0
	for i := range flagged {
		if !img.Valid(i) {
			continue
		}
		valid++
		if flagged[i] {
			bad++
		}
	}
	if valid == 0 {
		return 0
	}
	return 100 * float64(bad) / float64(valid)
}

// flag marks pixels whose class is one of codes; nil when nothing is flagged
func flag(img *models.Raster, classBand string, codes []int) []bool {
	scl, ok := img.Band(classBand)
	if !ok {
		return nil
	}

	lookup := make(map[int]bool, len(codes))
	for _, c := range codes {
		lookup[c] = true
	}

	flagged := make([]bool, len(scl))
	found := false
	for i, v := range scl {
		// masked or empty classification pixels count as clear
		if !img.ValidFor(classBand, i) {
			continue
		}
		if lookup[int(math.Round(v))] {
			flagged[i] = true
			found = true
		}
	}
	if !found {
		return nil
	}
	return flagged
}

func radiusPixels(meters, pixelSize float64) int {
	if pixelSize <= 0 || meters <= 0 {
		return 0
	}
	return int(math.Floor(meters/pixelSize + 1e-9))
}

// disk returns the pixel offsets lying within meters of the centre pixel.
// radiusPixels bounds the search; membership is decided in ground units so
// the element stays circular when pixelSize does not divide meters.
func disk(meters, pixelSize float64) [][2]int {
	r := radiusPixels(meters, pixelSize)
	limit := meters*meters + 1e-6
	var offsets [][2]int
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy)*pixelSize*pixelSize <= limit {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

// dilate grows the true region of src by the structuring element offsets
func dilate(src []bool, width, height int, offsets [][2]int) []bool {
	if len(offsets) == 1 {
		return append([]bool(nil), src...)
	}
	out := make([]bool, len(src))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !src[y*width+x] {
				continue
			}
			for _, o := range offsets {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				out[ny*width+nx] = true
			}
		}
	}
	return out
}
