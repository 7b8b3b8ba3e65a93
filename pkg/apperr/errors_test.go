package apperr

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := errors.Wrap(InvalidInput("pca", "input image has no bands"), "step 6 (pca)")
	if !IsInvalidInput(err) {
		t.Errorf("Expected wrapped error to be InvalidInput: %v", err)
	}
	if IsMismatched(err) || IsRemote(err) || IsInsufficientData(err) {
		t.Error("Expected no other kind to match")
	}

	err = fmt.Errorf("glcm: %w", Mismatched("glcm", "dates", 2, "images", 1))
	if !IsMismatched(err) {
		t.Errorf("Expected Mismatched through fmt wrapping: %v", err)
	}
	if !IsInsufficientData(errors.WithStack(InsufficientData("mean", "B2"))) {
		t.Error("Expected InsufficientData through WithStack")
	}
}

func TestRemote(t *testing.T) {
	if Remote("mean", nil, true) != nil {
		t.Error("Expected nil for a nil cause")
	}

	cause := errors.New("connection reset")
	err := errors.Wrap(Remote("mean", cause, true), "retry")
	if !IsRemote(err) || !IsTransient(err) {
		t.Errorf("Expected transient remote error, got %v", err)
	}
	if errors.Cause(err) != cause {
		t.Errorf("Expected Cause to reach the engine error, got %v", errors.Cause(err))
	}
	if IsTransient(Remote("mean", cause, false)) {
		t.Error("Expected permanent remote error not to be transient")
	}
	if IsTransient(cause) {
		t.Error("Expected plain error not to be transient")
	}
}

func TestMessages(t *testing.T) {
	err := Mismatched("glcm", "dates", 2, "images", 1)
	if err.Error() != "glcm: 2 dates but 1 images" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
