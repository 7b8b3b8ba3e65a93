// Package resample moves rasters onto a target pixel grid in the same CRS.
package resample

import (
	"fmt"
	"math"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
)

// Method selects how target pixels are estimated from source pixels
type Method int

const (
	// Nearest takes the source pixel containing the target pixel centre
	Nearest Method = iota
	// Bilinear weights the four surrounding source pixel centres; masked
	// neighbours are left out and the remaining weights renormalized
	Bilinear
)

// ParseMethod maps "nearest" or "bilinear" to a method
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return Nearest, fmt.Errorf("unknown resampling method %q (want nearest or bilinear)", s)
	}
}

// Grid describes a target pixel grid
type Grid struct {
	Width  int
	Height int
	Georef models.Georef
}

// SnapGrid returns the smallest grid of the given pixel size covering the
// extent, with its origin on a multiple of the pixel size
func SnapGrid(crs string, minX, minY, maxX, maxY, pixelSize float64) (Grid, error) {
	if pixelSize <= 0 {
		return Grid{}, apperr.InvalidInput("resample", "pixel size must be positive, got %v", pixelSize)
	}
	if maxX <= minX || maxY <= minY {
		return Grid{}, apperr.InvalidInput("resample", "empty extent")
	}
	originX := math.Floor(minX/pixelSize) * pixelSize
	originY := math.Ceil(maxY/pixelSize) * pixelSize
	width := int(math.Ceil((maxX - originX) / pixelSize))
	height := int(math.Ceil((originY - minY) / pixelSize))
	return Grid{
		Width:  width,
		Height: height,
		Georef: models.Georef{CRS: crs, OriginX: originX, OriginY: originY, PixelSize: pixelSize},
	}, nil
}

// Union returns the extent covered by all rasters
func Union(rasters []*models.Raster) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, r := range rasters {
		x0, y0, x1, y1 := r.Footprint()
		minX, minY = math.Min(minX, x0), math.Min(minY, y0)
		maxX, maxY = math.Max(maxX, x1), math.Max(maxY, y1)
	}
	return minX, minY, maxX, maxY
}

// Reproject estimates every band of img on the target grid. Target pixels
// whose centre falls outside img, or with no valid source neighbour, are
// masked. A raster already on the grid is returned unchanged.
func Reproject(img *models.Raster, grid Grid, method Method) (*models.Raster, error) {
	if img.Georef.CRS != "" && grid.Georef.CRS != "" && img.Georef.CRS != grid.Georef.CRS {
		return nil, apperr.InvalidInput("resample", "cannot move %s raster onto a %s grid", img.Georef.CRS, grid.Georef.CRS)
	}
	if img.Width == grid.Width && img.Height == grid.Height && img.Georef == grid.Georef {
		return img, nil
	}

	n := grid.Width * grid.Height
	names := img.BandNames()
	out := make([][]float64, len(names))
	for k := range out {
		out[k] = make([]float64, n)
	}
	keep := make([]bool, n)

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			i := row*grid.Width + col
			x, y := grid.Georef.PixelCenter(col, row)

			var idx []int
			var weights []float64
			if method == Bilinear {
				idx, weights = bilinearNeighbours(img, x, y)
			} else if j, ok := img.Index(x, y); ok && img.Valid(j) {
				idx, weights = []int{j}, []float64{1}
			}
			if len(idx) == 0 {
				for k := range out {
					out[k][i] = math.NaN()
				}
				continue
			}

			for k, name := range names {
				data, _ := img.Band(name)
				var sum, total float64
				for m, j := range idx {
					if math.IsNaN(data[j]) {
						continue
					}
					sum += weights[m] * data[j]
					total += weights[m]
				}
				if total > 0 {
					out[k][i] = sum / total
				} else {
					out[k][i] = math.NaN()
				}
			}
			keep[i] = true
		}
	}

	res := models.NewRaster(grid.Width, grid.Height, grid.Georef)
	for k, name := range names {
		res = res.MustWithBand(name, out[k])
	}
	return res.UpdateMask(keep)
}

// bilinearNeighbours returns the valid source pixels around (x, y) with their
// bilinear weights. The target centre must lie inside the source footprint.
func bilinearNeighbours(img *models.Raster, x, y float64) ([]int, []float64) {
	if _, ok := img.Index(x, y); !ok {
		return nil, nil
	}
	g := img.Georef
	// continuous pixel coordinates relative to pixel centres
	fx := (x-g.OriginX)/g.PixelSize - 0.5
	fy := (g.OriginY-y)/g.PixelSize - 0.5
	c0, r0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(c0), fy-float64(r0)

	var idx []int
	var weights []float64
	for _, n := range [4]struct {
		dc, dr int
		w      float64
	}{
		{0, 0, (1 - tx) * (1 - ty)},
		{1, 0, tx * (1 - ty)},
		{0, 1, (1 - tx) * ty},
		{1, 1, tx * ty},
	} {
		c, r := c0+n.dc, r0+n.dr
		if c < 0 || r < 0 || c >= img.Width || r >= img.Height || n.w == 0 {
			continue
		}
		j := r*img.Width + c
		if !img.Valid(j) {
			continue
		}
		idx = append(idx, j)
		weights = append(weights, n.w)
	}
	return idx, weights
}
