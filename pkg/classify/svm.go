// Package classify trains a two-class support vector machine on sample
// points and applies it to rasters.
package classify

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
)

// OutputBand is the name of the band produced by Classify
const OutputBand = "classification"

// KernelType selects the SVM kernel
type KernelType int

const (
	Linear KernelType = iota
	RBF
)

// ParseKernel maps "linear" or "rbf" to a kernel type
func ParseKernel(s string) (KernelType, error) {
	switch s {
	case "", "linear", "LINEAR":
		return Linear, nil
	case "rbf", "RBF":
		return RBF, nil
	default:
		return Linear, fmt.Errorf("unknown kernel %q (want linear or rbf)", s)
	}
}

func (k KernelType) String() string {
	if k == RBF {
		return "rbf"
	}
	return "linear"
}

// Params are the C-SVC training parameters
type Params struct {
	Kernel KernelType

	// C is the soft-margin cost
	C float64

	// Gamma is the RBF width; zero means 1 / number of features
	Gamma float64

	// Tolerance is the KKT violation tolerance
	Tolerance float64

	// MaxPasses is the number of sweeps without change before stopping
	MaxPasses int

	// MaxIterations bounds the total number of sweeps
	MaxIterations int

	// Seed drives the choice of the second multiplier
	Seed uint64
}

// DefaultParams is a linear C-SVC with cost 1
func DefaultParams() Params {
	return Params{
		Kernel:        Linear,
		C:             1,
		Tolerance:     1e-3,
		MaxPasses:     10,
		MaxIterations: 500,
		Seed:          42,
	}
}

// Model is a trained classifier. Inputs are standardized with the training
// mean and standard deviation before the kernel is applied.
type Model struct {
	Params Params
	Bands  []string

	Mean []float64
	Std  []float64

	SupportVectors [][]float64
	// Coef holds alpha_i * y_i for each support vector
	Coef []float64
	Bias float64
}

func (m *Model) kernel(a, b []float64) float64 {
	if m.Params.Kernel == RBF {
		var d float64
		for i := range a {
			diff := a[i] - b[i]
			d += diff * diff
		}
		return math.Exp(-m.Params.Gamma * d)
	}
	return floats.Dot(a, b)
}

func (m *Model) standardize(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = (v - m.Mean[i]) / m.Std[i]
	}
	return z
}

// Decision returns the signed distance-like score of a raw feature vector
func (m *Model) Decision(x []float64) float64 {
	z := m.standardize(x)
	score := m.Bias
	for k, sv := range m.SupportVectors {
		score += m.Coef[k] * m.kernel(sv, z)
	}
	return score
}

// Predict returns class 1 or 0 for a raw feature vector in Bands order
func (m *Model) Predict(x []float64) int {
	if m.Decision(x) > 0 {
		return 1
	}
	return 0
}

// Train fits a model on the samples using the class property as label and
// bands as inputs
func Train(samples models.SampleSet, bands []string, params Params) (*Model, error) {
	if len(bands) == 0 {
		return nil, apperr.InvalidInput("svm", "no input properties")
	}
	if samples.CountClass(0) == 0 || samples.CountClass(1) == 0 {
		return nil, apperr.InvalidInput("svm", "training needs both classes, got %d water and %d other",
			samples.CountClass(1), samples.CountClass(0))
	}
	if params.C <= 0 {
		return nil, apperr.InvalidInput("svm", "cost must be positive, got %v", params.C)
	}
	if params.Gamma <= 0 {
		params.Gamma = 1 / float64(len(bands))
	}

	m := len(samples)
	x := make([][]float64, m)
	y := make([]float64, m)
	for k, p := range samples {
		if !p.HasFeatures(bands) {
			return nil, apperr.InvalidInput("svm", "sample %d lacks one of %v", k, bands)
		}
		x[k] = p.Vector(bands)
		y[k] = -1
		if p.Class == 1 {
			y[k] = 1
		}
	}

	model := &Model{Params: params, Bands: append([]string(nil), bands...)}
	model.Mean = make([]float64, len(bands))
	model.Std = make([]float64, len(bands))
	column := make([]float64, m)
	for f := range bands {
		for k := range x {
			column[k] = x[k][f]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		model.Mean[f], model.Std[f] = mean, std
	}
	z := make([][]float64, m)
	for k := range x {
		z[k] = model.standardize(x[k])
	}

	alpha, bias := smo(model, z, y)

	for k, a := range alpha {
		if a > 1e-8 {
			model.SupportVectors = append(model.SupportVectors, z[k])
			model.Coef = append(model.Coef, a*y[k])
		}
	}
	model.Bias = bias
	return model, nil
}

// smo is the simplified sequential minimal optimization solver
func smo(model *Model, z [][]float64, y []float64) ([]float64, float64) {
	p := model.Params
	m := len(z)

	gram := make([][]float64, m)
	for i := range gram {
		gram[i] = make([]float64, m)
		for j := 0; j <= i; j++ {
			k := model.kernel(z[i], z[j])
			gram[i][j] = k
			gram[j][i] = k
		}
	}

	alpha := make([]float64, m)
	var b float64
	f := func(i int) float64 {
		s := b
		for k := 0; k < m; k++ {
			if alpha[k] != 0 {
				s += alpha[k] * y[k] * gram[k][i]
			}
		}
		return s
	}

	rng := rand.New(rand.NewSource(p.Seed))
	passes, iterations := 0, 0
	for passes < p.MaxPasses && iterations < p.MaxIterations {
		changed := 0
		for i := 0; i < m; i++ {
			ei := f(i) - y[i]
			if !((y[i]*ei < -p.Tolerance && alpha[i] < p.C) || (y[i]*ei > p.Tolerance && alpha[i] > 0)) {
				continue
			}
			j := rng.Intn(m - 1)
			if j >= i {
				j++
			}
			ej := f(j) - y[j]

			ai, aj := alpha[i], alpha[j]
			var lo, hi float64
			if y[i] != y[j] {
				lo, hi = math.Max(0, aj-ai), math.Min(p.C, p.C+aj-ai)
			} else {
				lo, hi = math.Max(0, ai+aj-p.C), math.Min(p.C, ai+aj)
			}
			if lo == hi {
				continue
			}
			eta := 2*gram[i][j] - gram[i][i] - gram[j][j]
			if eta >= 0 {
				continue
			}

			alpha[j] = math.Max(lo, math.Min(hi, aj-y[j]*(ei-ej)/eta))
			if math.Abs(alpha[j]-aj) < 1e-5 {
				alpha[j] = aj
				continue
			}
			alpha[i] = ai + y[i]*y[j]*(aj-alpha[j])

			b1 := b - ei - y[i]*(alpha[i]-ai)*gram[i][i] - y[j]*(alpha[j]-aj)*gram[i][j]
			b2 := b - ej - y[i]*(alpha[i]-ai)*gram[i][j] - y[j]*(alpha[j]-aj)*gram[j][j]
			switch {
			case alpha[i] > 0 && alpha[i] < p.C:
				b = b1
			case alpha[j] > 0 && alpha[j] < p.C:
				b = b2
			default:
				b = (b1 + b2) / 2
			}
			changed++
		}
		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
		iterations++
	}
	return alpha, b
}

// PredictSamples classifies every point; points lacking a band get -1
func (m *Model) PredictSamples(samples models.SampleSet) []int {
	out := make([]int, len(samples))
	for k, p := range samples {
		if !p.HasFeatures(m.Bands) {
			out[k] = -1
			continue
		}
		out[k] = m.Predict(p.Vector(m.Bands))
	}
	return out
}

// Classify applies the model to every pixel of img, producing a single
// classification band. Pixels invalid in any input band are masked. Rows are
// spread over a pool of workers.
func (m *Model) Classify(ctx context.Context, img *models.Raster, workers int) (*models.Raster, error) {
	inputs := make([][]float64, len(m.Bands))
	for f, b := range m.Bands {
		data, ok := img.Band(b)
		if !ok {
			return nil, apperr.InvalidInput("classify", "band %s not found", b)
		}
		inputs[f] = data
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	n := img.Len()
	out := make([]float64, n)
	keep := make([]bool, n)

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x := make([]float64, len(m.Bands))
			for row := range rows {
				for col := 0; col < img.Width; col++ {
					i := row*img.Width + col
					valid := true
					for f, b := range m.Bands {
						if !img.ValidFor(b, i) {
							valid = false
							break
						}
						x[f] = inputs[f][i]
					}
					if !valid {
						out[i] = math.NaN()
						continue
					}
					out[i] = float64(m.Predict(x))
					keep[i] = true
				}
			}
		}()
	}

	var err error
feed:
	for row := 0; row < img.Height; row++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case rows <- row:
		}
	}
	close(rows)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	res := models.NewRaster(img.Width, img.Height, img.Georef).MustWithBand(OutputBand, out)
	return res.UpdateMask(keep)
}
