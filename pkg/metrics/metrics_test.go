package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderValues(t *testing.T) {
	rec := NewRecorder()
	rec.AddMaskedPixels(29)
	rec.AddMaskedPixels(1)
	rec.SetSamples("training", 1120)
	rec.SetAccuracy("bands", 0.93)

	if v := testutil.ToFloat64(rec.pixelsMasked); v != 30 {
		t.Errorf("Expected 30 masked pixels, got %f", v)
	}
	if v := testutil.ToFloat64(rec.samples.WithLabelValues("training")); v != 1120 {
		t.Errorf("Expected 1120 training samples, got %f", v)
	}
	if v := testutil.ToFloat64(rec.accuracy.WithLabelValues("bands")); v != 0.93 {
		t.Errorf("Expected accuracy 0.93, got %f", v)
	}
}

func TestWriteTextfile(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveStage("pca", time.Now().Add(-50*time.Millisecond))
	rec.SetScenes("COPERNICUS/S2_SR", 3)

	path := filepath.Join(t.TempDir(), "surfacewater.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`surfacewater_stage_duration_seconds_count{stage="pca"} 1`,
		`surfacewater_scenes{collection="COPERNICUS/S2_SR"} 3`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected textfile to contain %q", want)
		}
	}
}
