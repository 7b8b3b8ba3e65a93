// Package pca projects a multi-band image onto the principal components of
// its band covariance over a region.
package pca

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/engine"
	"surfacewater/pkg/geo"
)

// MissingMeanPolicy decides what happens when a band has no valid pixel in
// the region and therefore no mean
type MissingMeanPolicy int

const (
	// MissingMeanFail returns an InsufficientDataError
	MissingMeanFail MissingMeanPolicy = iota
	// MissingMeanZero centers the band with a mean of zero
	MissingMeanZero
)

// ParseMissingMeanPolicy maps "fail" or "zero" to a policy
func ParseMissingMeanPolicy(s string) (MissingMeanPolicy, error) {
	switch s {
	case "", "fail":
		return MissingMeanFail, nil
	case "zero":
		return MissingMeanZero, nil
	default:
		return MissingMeanFail, fmt.Errorf("unknown missing mean policy %q (want fail or zero)", s)
	}
}

// Options configures the transform
type Options struct {
	MissingMean MissingMeanPolicy
}

// Eigen holds an eigendecomposition ordered by descending eigenvalue.
// Column j of Vectors is the unit eigenvector of Values[j].
type Eigen struct {
	Values  []float64
	Vectors *mat.Dense
}

// Vector returns eigenvector j as a slice
func (e Eigen) Vector(j int) []float64 {
	return mat.Col(nil, j, e.Vectors)
}

// Result is the output of Compute
type Result struct {
	// Image holds bands PC1..PCk
	Image *models.Raster

	Eigen Eigen
	Means []float64
	Bands []string
}

// ComponentNames returns PC1..PCk
func ComponentNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("PC%d", i+1)
	}
	return names
}

// Compute runs the PCA transform over the given bands:
//  1. per-band mean over region at scale
//  2. centering of every pixel vector
//  3. centered covariance over region at scale
//  4. symmetric eigendecomposition, eigenvalues descending
//  5. projection of every centered pixel onto each eigenvector
//
// The output has as many components as input bands. Pixels invalid in any
// input band are invalid in every component.
func Compute(ctx context.Context, eng engine.Engine, img *models.Raster, region *geo.Region, scale float64, bands []string, opts Options) (*Result, error) {
	if len(bands) == 0 {
		return nil, apperr.InvalidInput("pca", "input image has no bands")
	}
	selected, err := img.Select(bands...)
	if err != nil {
		return nil, apperr.InvalidInput("pca", "%v", err)
	}

	// Step 1: band means
	meanStats, err := eng.Mean(ctx, selected, region, scale)
	if err != nil {
		return nil, errors.Wrap(err, "pca: computing band means")
	}
	means := make([]float64, len(bands))
	for i, b := range bands {
		if _, ok := meanStats.Get(b); !ok && opts.MissingMean == MissingMeanFail {
			return nil, apperr.InsufficientData("pca", b)
		}
		means[i] = meanStats.GetOrDefault(b, 0)
	}

	// Step 2: centering
	centered := center(selected, bands, means)

	// Step 3: covariance of the centered bands
	cov, err := eng.Covariance(ctx, centered, region, scale)
	if err != nil {
		return nil, errors.Wrap(err, "pca: computing covariance")
	}

	// Step 4: eigendecomposition
	eig, err := Decompose(cov)
	if err != nil {
		return nil, err
	}

	// Step 5: projection
	pcs, err := project(centered, bands, eig)
	if err != nil {
		return nil, err
	}

	return &Result{Image: pcs, Eigen: eig, Means: means, Bands: append([]string(nil), bands...)}, nil
}

func center(img *models.Raster, bands []string, means []float64) *models.Raster {
	out := models.NewRaster(img.Width, img.Height, img.Georef)
	for i, b := range bands {
		src, _ := img.Band(b)
		dst := make([]float64, len(src))
		for p, v := range src {
			dst[p] = v - means[i]
		}
		out = out.MustWithBand(b, dst)
	}
	out, _ = out.UpdateMask(img.Mask())
	return out
}

// Decompose returns the eigendecomposition of a symmetric covariance matrix,
// ordered by descending eigenvalue. Equal eigenvalues keep the solver order.
// Each eigenvector is signed so that its largest-magnitude entry is positive,
// which makes the result reproducible.
func Decompose(cov *mat.SymDense) (Eigen, error) {
	n := cov.SymmetricDim()
	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		return Eigen{}, apperr.Remote("pca", fmt.Errorf("eigendecomposition of %dx%d covariance did not converge", n, n), false)
	}

	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	sorted := mat.NewDense(n, n, nil)
	sortedValues := make([]float64, n)
	for j, src := range order {
		sortedValues[j] = values[src]
		col := mat.Col(nil, src, &vectors)
		sign := 1.0
		largest := 0.0
		for _, v := range col {
			if math.Abs(v) > math.Abs(largest)+1e-12 {
				largest = v
			}
		}
		if largest < 0 {
			sign = -1
		}
		for i, v := range col {
			sorted.Set(i, j, sign*v)
		}
	}

	return Eigen{Values: sortedValues, Vectors: sorted}, nil
}

func project(centered *models.Raster, bands []string, eig Eigen) (*models.Raster, error) {
	k := len(bands)
	data := make([][]float64, k)
	for i, b := range bands {
		data[i], _ = centered.Band(b)
	}

	n := centered.Len()
	components := make([][]float64, k)
	for j := range components {
		components[j] = make([]float64, n)
	}
	keep := make([]bool, n)

	pixel := make([]float64, k)
	for p := 0; p < n; p++ {
		valid := centered.Valid(p)
		for i := 0; valid && i < k; i++ {
			pixel[i] = data[i][p]
			valid = !math.IsNaN(pixel[i])
		}
		keep[p] = valid
		if !valid {
			for j := range components {
				components[j][p] = math.NaN()
			}
			continue
		}
		for j := 0; j < k; j++ {
			var sum float64
			for i := 0; i < k; i++ {
				sum += eig.Vectors.At(i, j) * pixel[i]
			}
			components[j][p] = sum
		}
	}

	out := models.NewRaster(centered.Width, centered.Height, centered.Georef)
	for j, name := range ComponentNames(k) {
		out = out.MustWithBand(name, components[j])
	}
	return out.UpdateMask(keep)
}
