package glcm

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/engine"
	"surfacewater/pkg/geo"
)

// DatedTexture is the texture of one acquisition date
type DatedTexture struct {
	Date          string
	Entropy       *models.Raster
	Variance      *models.Raster
	Dissimilarity *models.Raster
}

// Combined returns the three texture bands as one raster
func (d DatedTexture) Combined() (*models.Raster, error) {
	return d.Entropy.AddBands(d.Variance, d.Dissimilarity)
}

// ComputeGLCM extracts texture for every (date, image) pair. Pairs are
// independent and run concurrently; results keep the input order. The first
// failure cancels the remaining pairs and is returned.
func ComputeGLCM(ctx context.Context, eng engine.Engine, dates []string, images []*models.Raster, region *geo.Region, opts Options) ([]DatedTexture, error) {
	if len(dates) != len(images) {
		return nil, apperr.Mismatched("glcm", "dates", len(dates), "images", len(images))
	}
	if opts.Band == "" {
		opts.Band = "PC1"
	}

	results := make([]DatedTexture, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}

	for i := range dates {
		g.Go(func() error {
			tex, err := Texture(gctx, eng, images[i], opts.Band, region, opts)
			if err != nil {
				return errors.Wrapf(err, "glcm for %s", dates[i])
			}
			dt := DatedTexture{Date: dates[i]}
			if dt.Entropy, err = tex.Select(opts.Band + EntropySuffix); err != nil {
				return err
			}
			if dt.Variance, err = tex.Select(opts.Band + VarianceSuffix); err != nil {
				return err
			}
			if dt.Dissimilarity, err = tex.Select(opts.Band + DissimilaritySuffix); err != nil {
				return err
			}
			results[i] = dt
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
