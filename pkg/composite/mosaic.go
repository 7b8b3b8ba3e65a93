// Package composite merges overlapping scenes on a shared grid.
package composite

import (
	"fmt"

	"surfacewater/internal/models"
)

// Mosaic composites scenes in order, later scenes on top: each output pixel
// takes the band values of the last scene that is valid there. Only bands
// present in every scene are kept. All scenes must share one grid.
func Mosaic(scenes []*models.Raster) (*models.Raster, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("mosaic of zero scenes")
	}
	base := scenes[0]
	for i, s := range scenes[1:] {
		if !s.SameGrid(base) {
			return nil, fmt.Errorf("scene %d is not on the grid of scene 0", i+1)
		}
	}

	var bands []string
	for _, name := range base.BandNames() {
		shared := true
		for _, s := range scenes[1:] {
			if !s.HasBand(name) {
				shared = false
				break
			}
		}
		if shared {
			bands = append(bands, name)
		}
	}

	n := base.Len()
	source := make([]int, n)
	keep := make([]bool, n)
	for i := range source {
		source[i] = -1
		for s := len(scenes) - 1; s >= 0; s-- {
			if scenes[s].Valid(i) {
				source[i] = s
				keep[i] = true
				break
			}
		}
	}

	out := models.NewRaster(base.Width, base.Height, base.Georef)
	for _, name := range bands {
		data := make([]float64, n)
		for i, s := range source {
			if s < 0 {
				continue
			}
			src, _ := scenes[s].Band(name)
			data[i] = src[i]
		}
		out = out.MustWithBand(name, data)
	}
	return out.UpdateMask(keep)
}
