package classify

import (
	"math"
	"testing"

	"surfacewater/pkg/apperr"
)

func TestErrorMatrix(t *testing.T) {
	actual := []int{1, 1, 1, 1, 0, 0, 0, 0, 0, 0}
	predicted := []int{1, 1, 1, 0, 0, 0, 0, 0, 1, -1}

	em, err := NewErrorMatrix(actual, predicted)
	if err != nil {
		t.Fatalf("NewErrorMatrix failed: %v", err)
	}
	if em.Total() != 9 {
		t.Fatalf("Expected 9 counted pairs, got %d", em.Total())
	}
	if em.Counts[1][1] != 3 || em.Counts[1][0] != 1 || em.Counts[0][0] != 4 || em.Counts[0][1] != 1 {
		t.Errorf("Unexpected counts %v", em.Counts)
	}
	if math.Abs(em.Accuracy()-7.0/9.0) > 1e-12 {
		t.Errorf("Expected accuracy 7/9, got %f", em.Accuracy())
	}

	// po = 7/9, pe = (5*5 + 4*4) / 81 = 41/81
	expectedKappa := (7.0/9.0 - 41.0/81.0) / (1 - 41.0/81.0)
	if math.Abs(em.Kappa()-expectedKappa) > 1e-12 {
		t.Errorf("Expected kappa %f, got %f", expectedKappa, em.Kappa())
	}

	producers := em.ProducersAccuracy()
	if producers[1] != 0.75 || producers[0] != 0.8 {
		t.Errorf("Expected producers accuracy [0.8 0.75], got %v", producers)
	}
	consumers := em.ConsumersAccuracy()
	if consumers[1] != 0.75 || consumers[0] != 0.8 {
		t.Errorf("Expected consumers accuracy [0.8 0.75], got %v", consumers)
	}
}

func TestErrorMatrixEmptyAndMismatched(t *testing.T) {
	var em ErrorMatrix
	if em.Accuracy() != 0 || em.Kappa() != 0 {
		t.Errorf("Expected zero scores for empty matrix, got %f and %f", em.Accuracy(), em.Kappa())
	}
	if _, err := NewErrorMatrix([]int{1}, nil); !apperr.IsMismatched(err) {
		t.Errorf("Expected Mismatched error, got %v", err)
	}
}
