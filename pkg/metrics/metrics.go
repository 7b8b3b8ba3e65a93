// Package metrics records workflow stage timings and counts in a private
// prometheus registry that can be exported as a textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the workflow metrics
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	pixelsMasked  prometheus.Counter
	samples       *prometheus.GaugeVec
	accuracy      *prometheus.GaugeVec
	scenes        *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "surfacewater_stage_duration_seconds",
			Help:    "Duration of workflow stages.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		pixelsMasked: factory.NewCounter(prometheus.CounterOpts{
			Name: "surfacewater_cloud_masked_pixels_total",
			Help: "Number of pixels invalidated by the cloud mask.",
		}),
		samples: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "surfacewater_samples",
			Help: "Number of sample points per set.",
		}, []string{"set"}),
		accuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "surfacewater_classifier_accuracy",
			Help: "Overall validation accuracy per classifier.",
		}, []string{"classifier"}),
		scenes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "surfacewater_scenes",
			Help: "Number of scenes selected per collection.",
		}, []string{"collection"}),
	}
}

// ObserveStage records how long a stage took since start
func (r *Recorder) ObserveStage(stage string, start time.Time) {
	r.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (r *Recorder) AddMaskedPixels(n int) {
	r.pixelsMasked.Add(float64(n))
}

func (r *Recorder) SetSamples(set string, n int) {
	r.samples.WithLabelValues(set).Set(float64(n))
}

func (r *Recorder) SetAccuracy(classifier string, accuracy float64) {
	r.accuracy.WithLabelValues(classifier).Set(accuracy)
}

func (r *Recorder) SetScenes(collection string, n int) {
	r.scenes.WithLabelValues(collection).Set(float64(n))
}

// WriteTextfile writes all metrics in the text exposition format, suitable
// for the node exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
