// Package apperr defines the error kinds shared by the pipeline stages.
// Stages return these unwrapped or wrapped with github.com/pkg/errors; callers
// test for a kind with the Is* helpers, which see through wrapping.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvalidInputError reports an input that can never succeed, such as an
// empty band list
type InvalidInputError struct {
	Op     string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Reason)
}

// MismatchedInputError reports parallel lists of different lengths
type MismatchedInputError struct {
	Op     string
	Left   string
	Right  string
	NLeft  int
	NRight int
}

func (e *MismatchedInputError) Error() string {
	return fmt.Sprintf("%s: %d %s but %d %s", e.Op, e.NLeft, e.Left, e.NRight, e.Right)
}

// InsufficientDataError reports a reduction that saw no valid pixel
type InsufficientDataError struct {
	Op   string
	Band string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: no valid pixels for band %s in region", e.Op, e.Band)
}

// RemoteComputationError wraps a failure of the execution engine
type RemoteComputationError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *RemoteComputationError) Error() string {
	return fmt.Sprintf("%s: computation failed: %v", e.Op, e.Err)
}

func (e *RemoteComputationError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause reach the engine error
func (e *RemoteComputationError) Cause() error { return e.Err }

func InvalidInput(op, format string, args ...interface{}) error {
	return &InvalidInputError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func Mismatched(op, left string, nLeft int, right string, nRight int) error {
	return &MismatchedInputError{Op: op, Left: left, NLeft: nLeft, Right: right, NRight: nRight}
}

func InsufficientData(op, band string) error {
	return &InsufficientDataError{Op: op, Band: band}
}

// Remote wraps err as a RemoteComputationError; nil stays nil
func Remote(op string, err error, transient bool) error {
	if err == nil {
		return nil
	}
	return &RemoteComputationError{Op: op, Err: err, Transient: transient}
}

func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

func IsMismatched(err error) bool {
	var target *MismatchedInputError
	return errors.As(err, &target)
}

func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

func IsRemote(err error) bool {
	var target *RemoteComputationError
	return errors.As(err, &target)
}

// IsTransient reports whether err is a remote failure worth retrying
func IsTransient(err error) bool {
	var target *RemoteComputationError
	if errors.As(err, &target) {
		return target.Transient
	}
	return false
}
