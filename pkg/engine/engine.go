// Package engine abstracts the region reductions the pipeline needs. The
// workflow only ever talks to the Engine interface, so a remote execution
// service and the in-memory LocalEngine are interchangeable.
package engine

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"surfacewater/internal/models"
	"surfacewater/pkg/geo"
)

// Engine evaluates reductions of an image over a region at a scale
type Engine interface {
	// Mean returns the per-band mean. Bands without valid pixels are absent.
	Mean(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (models.BandStats, error)

	// MinMax returns the per-band range. Bands without valid pixels are absent.
	MinMax(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (models.RangeStats, error)

	// Covariance returns the centered covariance matrix of the bands, in band
	// order, over pixels valid in every band
	Covariance(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (*mat.SymDense, error)
}
