package engine

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/geo"
)

// LocalEngine evaluates reductions eagerly on in-memory rasters.
//
// The scale argument selects the sampling stride: when scale is coarser than
// the raster's pixel size, only every n-th pixel in each direction is reduced,
// with n = round(scale / pixelSize). A scale at or below the pixel size uses
// every pixel.
type LocalEngine struct {
	// MaxPixels bounds the number of pixels a single reduction may touch
	MaxPixels int
}

// NewLocalEngine creates a local engine with the platform's usual pixel cap
func NewLocalEngine() *LocalEngine {
	return &LocalEngine{MaxPixels: 1e8}
}

// pixelsIn returns the indices of pixels inside region at the given scale
func (e *LocalEngine) pixelsIn(ctx context.Context, op string, img *models.Raster, region *geo.Region, scale float64) ([]int, error) {
	stride := 1
	if img.Georef.PixelSize > 0 && scale > img.Georef.PixelSize {
		stride = int(math.Round(scale / img.Georef.PixelSize))
	}

	var idx []int
	for row := 0; row < img.Height; row += stride {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Remote(op, err, false)
		}
		for col := 0; col < img.Width; col += stride {
			i := row*img.Width + col
			if !img.Valid(i) {
				continue
			}
			if region != nil {
				x, y := img.PixelCenter(col, row)
				if !region.Contains(x, y) {
					continue
				}
			}
			idx = append(idx, i)
		}
	}

	if e.MaxPixels > 0 && len(idx) > e.MaxPixels {
		return nil, apperr.Remote(op, errTooManyPixels(len(idx), e.MaxPixels), false)
	}
	return idx, nil
}

func (e *LocalEngine) Mean(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (models.BandStats, error) {
	idx, err := e.pixelsIn(ctx, "mean", img, region, scale)
	if err != nil {
		return nil, err
	}

	stats := make(models.BandStats)
	for _, name := range img.BandNames() {
		values := validValues(img, name, idx)
		if len(values) == 0 {
			continue
		}
		stats[name] = stat.Mean(values, nil)
	}
	return stats, nil
}

func (e *LocalEngine) MinMax(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (models.RangeStats, error) {
	idx, err := e.pixelsIn(ctx, "minMax", img, region, scale)
	if err != nil {
		return nil, err
	}

	stats := make(models.RangeStats)
	for _, name := range img.BandNames() {
		values := validValues(img, name, idx)
		if len(values) == 0 {
			continue
		}
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		stats[name] = models.Range{Min: lo, Max: hi}
	}
	return stats, nil
}

func (e *LocalEngine) Covariance(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (*mat.SymDense, error) {
	idx, err := e.pixelsIn(ctx, "centeredCovariance", img, region, scale)
	if err != nil {
		return nil, err
	}

	names := img.BandNames()
	if len(names) == 0 {
		return nil, apperr.InvalidInput("centeredCovariance", "image has no bands")
	}

	// Only pixels valid in every band contribute, as with an array-valued reduction
	var rows []int
	for _, i := range idx {
		complete := true
		for _, name := range names {
			if !img.ValidFor(name, i) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	if len(rows) < 2 {
		return nil, apperr.InsufficientData("centeredCovariance", names[0])
	}

	x := mat.NewDense(len(rows), len(names), nil)
	for c, name := range names {
		data, _ := img.Band(name)
		for r, i := range rows {
			x.Set(r, c, data[i])
		}
	}

	cov := mat.NewSymDense(len(names), nil)
	stat.CovarianceMatrix(cov, x, nil)
	return cov, nil
}

func validValues(img *models.Raster, band string, idx []int) []float64 {
	data, ok := img.Band(band)
	if !ok {
		return nil
	}
	values := make([]float64, 0, len(idx))
	for _, i := range idx {
		if img.ValidFor(band, i) {
			values = append(values, data[i])
		}
	}
	return values
}
