package classify

import (
	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
)

// ErrorMatrix is a two-class confusion matrix. Counts[actual][predicted].
type ErrorMatrix struct {
	Counts [2][2]int
}

// NewErrorMatrix compares actual labels with predictions; pairs with a label
// outside {0, 1} are skipped
func NewErrorMatrix(actual, predicted []int) (ErrorMatrix, error) {
	var em ErrorMatrix
	if len(actual) != len(predicted) {
		return em, apperr.Mismatched("errorMatrix", "labels", len(actual), "predictions", len(predicted))
	}
	for k := range actual {
		a, p := actual[k], predicted[k]
		if a < 0 || a > 1 || p < 0 || p > 1 {
			continue
		}
		em.Counts[a][p]++
	}
	return em, nil
}

// Assess classifies the validation set with the model
func Assess(model *Model, validation models.SampleSet) (ErrorMatrix, error) {
	actual := make([]int, len(validation))
	for k, p := range validation {
		actual[k] = p.Class
	}
	return NewErrorMatrix(actual, model.PredictSamples(validation))
}

func (e ErrorMatrix) Total() int {
	return e.Counts[0][0] + e.Counts[0][1] + e.Counts[1][0] + e.Counts[1][1]
}

// Accuracy is the share of correctly classified samples
func (e ErrorMatrix) Accuracy() float64 {
	total := e.Total()
	if total == 0 {
		return 0
	}
	return float64(e.Counts[0][0]+e.Counts[1][1]) / float64(total)
}

// Kappa is Cohen's kappa coefficient
func (e ErrorMatrix) Kappa() float64 {
	total := float64(e.Total())
	if total == 0 {
		return 0
	}
	po := e.Accuracy()
	var pe float64
	for c := 0; c < 2; c++ {
		rowSum := float64(e.Counts[c][0] + e.Counts[c][1])
		colSum := float64(e.Counts[0][c] + e.Counts[1][c])
		pe += rowSum * colSum / (total * total)
	}
	if pe == 1 {
		return 0
	}
	return (po - pe) / (1 - pe)
}

// ProducersAccuracy is the per-class recall
func (e ErrorMatrix) ProducersAccuracy() [2]float64 {
	var out [2]float64
	for c := 0; c < 2; c++ {
		row := e.Counts[c][0] + e.Counts[c][1]
		if row > 0 {
			out[c] = float64(e.Counts[c][c]) / float64(row)
		}
	}
	return out
}

// ConsumersAccuracy is the per-class precision
func (e ErrorMatrix) ConsumersAccuracy() [2]float64 {
	var out [2]float64
	for c := 0; c < 2; c++ {
		col := e.Counts[0][c] + e.Counts[1][c]
		if col > 0 {
			out[c] = float64(e.Counts[c][c]) / float64(col)
		}
	}
	return out
}
