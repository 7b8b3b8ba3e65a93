package engine

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"k8s.io/apimachinery/pkg/util/wait"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/geo"
)

func errTooManyPixels(n, max int) error {
	return fmt.Errorf("reduction touches %d pixels, more than maxPixels %d", n, max)
}

// RetryPolicy bounds how often a transient reduction failure is retried
type RetryPolicy struct {
	Steps    int
	Duration time.Duration
	Factor   float64
	Jitter   float64
}

// DefaultRetryPolicy makes three attempts with exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Steps: 3, Duration: 200 * time.Millisecond, Factor: 2, Jitter: 0.1}
}

// Retrying wraps an Engine so that reductions failing with a transient
// RemoteComputationError are retried. Reductions are pure functions of their
// inputs, so a retry is idempotent. Any other error is returned at once.
type Retrying struct {
	next   Engine
	policy RetryPolicy
}

func WithRetry(next Engine, policy RetryPolicy) *Retrying {
	if policy.Steps < 1 {
		policy.Steps = 1
	}
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) do(ctx context.Context, fn func() error) error {
	backoff := wait.Backoff{
		Steps:    r.policy.Steps,
		Duration: r.policy.Duration,
		Factor:   r.policy.Factor,
		Jitter:   r.policy.Jitter,
	}

	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(context.Context) (bool, error) {
		lastErr = fn()
		if lastErr == nil {
			return true, nil
		}
		if apperr.IsTransient(lastErr) {
			return false, nil
		}
		return false, lastErr
	})
	if err == nil {
		return nil
	}
	// Exhausted retries surface the last engine error rather than the timeout
	if lastErr != nil {
		return lastErr
	}
	return apperr.Remote("retry", err, false)
}

func (r *Retrying) Mean(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (models.BandStats, error) {
	var out models.BandStats
	err := r.do(ctx, func() error {
		var err error
		out, err = r.next.Mean(ctx, img, region, scale)
		return err
	})
	return out, err
}

func (r *Retrying) MinMax(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (models.RangeStats, error) {
	var out models.RangeStats
	err := r.do(ctx, func() error {
		var err error
		out, err = r.next.MinMax(ctx, img, region, scale)
		return err
	})
	return out, err
}

func (r *Retrying) Covariance(ctx context.Context, img *models.Raster, region *geo.Region, scale float64) (*mat.SymDense, error) {
	var out *mat.SymDense
	err := r.do(ctx, func() error {
		var err error
		out, err = r.next.Covariance(ctx, img, region, scale)
		return err
	})
	return out, err
}
