package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"surfacewater/internal/logger"
	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/catalog"
	"surfacewater/pkg/config"
	"surfacewater/pkg/fileaccess"
	"surfacewater/pkg/geo"
)

const crs = "EPSG:32648"

// band builds a width x height band: water columns (x < waterCols) get
// water, the rest land, plus a small deterministic ripple
func band(width, height, waterCols int, water, land float64) []float64 {
	data := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := land
			if x < waterCols {
				v = water
			}
			data[y*width+x] = v + 0.001*float64((x*7+y*3)%11)
		}
	}
	return data
}

// createArchive writes two usable Sentinel-2 scenes, one too cloudy, and one
// Landsat-8 scene covering a 300 m square whose left half is water
func createArchive(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cat := catalog.New(&fileaccess.FSAccess{}, fileaccess.Location{Bucket: root})

	s2Grid := models.Georef{CRS: crs, OriginX: 0, OriginY: 300, PixelSize: 10}
	scl := make([]float64, 900)
	for i := range scl {
		scl[i] = 4
	}
	scl[25*30+25] = 9
	s2 := models.NewRaster(30, 30, s2Grid).
		MustWithBand("B2", band(30, 30, 15, 0.05, 0.08)).
		MustWithBand("B3", band(30, 30, 15, 0.3, 0.1)).
		MustWithBand("B4", band(30, 30, 15, 0.04, 0.12)).
		MustWithBand("B8", band(30, 30, 15, 0.05, 0.35)).
		MustWithBand("SCL", scl)

	s2Bands := []catalog.BandFile{
		{Name: "B2", File: "B2.tif", Scale: 0.0001},
		{Name: "B3", File: "B3.tif", Scale: 0.0001},
		{Name: "B4", File: "B4.tif", Scale: 0.0001},
		{Name: "B8", File: "B8.tif", Scale: 0.0001},
		{Name: "SCL", File: "SCL.tif", Scale: 1},
	}
	for _, s := range []struct {
		id, date string
		cloud    float64
	}{
		{"S2A_20200805", "2020-08-05", 2},
		{"S2B_20200810", "2020-08-10", 8},
		{"S2A_20200815", "2020-08-15", 60},
	} {
		m := catalog.Manifest{
			ID: s.id, Collection: "COPERNICUS/S2_SR", Date: s.date,
			Properties: map[string]float64{catalog.CloudyPixelPercentage: s.cloud},
			Bands:      s2Bands,
		}
		if err := cat.WriteScene(m, s2); err != nil {
			t.Fatalf("WriteScene failed: %v", err)
		}
	}

	lc := models.NewRaster(10, 10, models.Georef{CRS: crs, OriginX: 0, OriginY: 300, PixelSize: 30}).
		MustWithBand("SR_B2", band(10, 10, 5, 0.05, 0.08)).
		MustWithBand("SR_B3", band(10, 10, 5, 0.3, 0.1)).
		MustWithBand("SR_B4", band(10, 10, 5, 0.04, 0.12)).
		MustWithBand("SR_B5", band(10, 10, 5, 0.05, 0.35))
	m := catalog.Manifest{
		ID: "LC08_125039_20200801", Collection: "LANDSAT/LC08/C02/T1_L2", Date: "2020-08-01",
		Properties: map[string]float64{catalog.WRSPath: 125, catalog.WRSRow: 39},
		Bands: []catalog.BandFile{
			{Name: "SR_B2", File: "SR_B2.tif", Scale: 0.0001},
			{Name: "SR_B3", File: "SR_B3.tif", Scale: 0.0001},
			{Name: "SR_B4", File: "SR_B4.tif", Scale: 0.0001},
			{Name: "SR_B5", File: "SR_B5.tif", Scale: 0.0001},
		},
	}
	if err := cat.WriteScene(m, lc); err != nil {
		t.Fatalf("WriteScene failed: %v", err)
	}
	return root
}

func testConfig(root, out string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Archive.Root = root
	cfg.Water.SamplesPerClass = 40
	cfg.Classifier.NumWorkers = 2
	cfg.Retry.Duration = "1ms"
	cfg.Output.Dir = out
	cfg.Output.MetricsFile = "surfacewater.prom"
	return cfg
}

func TestProcessEndToEnd(t *testing.T) {
	root := createArchive(t)
	out := filepath.Join(t.TempDir(), "out")

	runner, err := NewRunner(&Params{
		Config: testConfig(root, out),
		Region: geo.Rect(crs, 0, 0, 300, 300),
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	report, err := runner.Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(report.SentinelScenes) != 2 {
		t.Errorf("Expected 2 Sentinel-2 scenes, got %v", report.SentinelScenes)
	}
	if len(report.LandsatScenes) != 1 {
		t.Errorf("Expected 1 Landsat-8 scene, got %v", report.LandsatScenes)
	}
	if report.WaterSamples != 40 || report.OtherSamples != 40 {
		t.Errorf("Expected 40 samples per class, got %d and %d", report.WaterSamples, report.OtherSamples)
	}
	if report.Training+report.Validation != report.SampledPoints {
		t.Errorf("Expected split to cover %d points, got %d + %d", report.SampledPoints, report.Training, report.Validation)
	}
	if len(report.Eigenvalues) != 4 {
		t.Errorf("Expected 4 eigenvalues, got %d", len(report.Eigenvalues))
	}
	if len(report.Classifiers) != 2 {
		t.Fatalf("Expected 2 classifier reports, got %d", len(report.Classifiers))
	}

	bands, ok := report.Classifier("bands")
	if !ok {
		t.Fatal("Expected a bands classifier report")
	}
	if bands.Accuracy < 0.9 {
		t.Errorf("Expected bands-only accuracy >= 0.9, got %f (%v)", bands.Accuracy, bands.ErrorMatrix)
	}
	extended, _ := report.Classifier("bands_glcm")
	if len(extended.Bands) != 7 {
		t.Errorf("Expected 7 extended bands, got %v", extended.Bands)
	}

	for _, name := range []string{
		"report.yaml",
		"surfacewater.prom",
		"quicklooks/ndwi.png",
		"quicklooks/water_mask.png",
		"quicklooks/PC1_ent.png",
		"quicklooks/classification_bands_glcm.png",
		"classification/svm_bands/classification.tif",
	} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("Expected output %s: %v", name, err)
		}
	}

	// classified rasters are readable as an archive collection
	results := catalog.New(&fileaccess.FSAccess{}, fileaccess.Location{Bucket: out})
	col, err := results.Collection("classification")
	if err != nil || col.Size() != 2 {
		t.Fatalf("Expected 2 classification scenes, got %v", err)
	}
	rasters, err := col.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cls, _ := rasters[0].Band("classification")
	if cls[0] != 1 || cls[9] != 0 {
		t.Errorf("Expected water at the left edge and land at the right, got %f and %f", cls[0], cls[9])
	}
}

func TestProcessLogsCloudCoverPerScene(t *testing.T) {
	root := createArchive(t)
	var buf bytes.Buffer

	runner, err := NewRunner(&Params{
		Config: testConfig(root, ""),
		Region: geo.Rect(crs, 0, 0, 300, 300),
		Logger: logger.New(&buf, zerolog.InfoLevel),
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	report, err := runner.Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// one high cloud pixel out of 900
	want := 100.0 / 900
	if len(report.CloudCover) != 2 {
		t.Fatalf("Expected cloud cover for 2 scenes, got %v", report.CloudCover)
	}
	for _, id := range []string{"S2A_20200805", "S2B_20200810"} {
		if got := report.CloudCover[id]; math.Abs(got-want) > 1e-9 {
			t.Errorf("Expected %s cloud cover %f, got %f", id, want, got)
		}
	}

	logged := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		if event["message"] != "cloud mask applied" {
			continue
		}
		if event["step"] != float64(2) || event["stage"] != "sentinel_mosaic" {
			t.Errorf("Expected cloud mask events in step 2, got %v %v", event["step"], event["stage"])
		}
		if pct, ok := event["cloudPercent"].(float64); !ok || math.Abs(pct-want) > 1e-9 {
			t.Errorf("Expected cloudPercent %f, got %v", want, event["cloudPercent"])
		}
		logged[event["scene"].(string)] = true
	}
	if !logged["S2A_20200805"] || !logged["S2B_20200810"] || len(logged) != 2 {
		t.Errorf("Expected one cloud mask event per selected scene, got %v", logged)
	}
}

func TestProcessFailsWithoutSentinelScenes(t *testing.T) {
	root := createArchive(t)
	cfg := testConfig(root, "")
	cfg.Sentinel.MaxCloudPercent = 1

	runner, err := NewRunner(&Params{Config: cfg, Region: geo.Rect(crs, 0, 0, 300, 300)})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if _, err := runner.Process(context.Background()); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInput for empty Sentinel-2 selection, got %v", err)
	}
}

func TestProcessFailsWithoutLandsatScenes(t *testing.T) {
	root := createArchive(t)
	cfg := testConfig(root, "")
	cfg.Landsat.WRSRow = 40

	runner, _ := NewRunner(&Params{Config: cfg, Region: geo.Rect(crs, 0, 0, 300, 300)})
	if _, err := runner.Process(context.Background()); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInput for empty Landsat-8 selection, got %v", err)
	}
}

func TestProcessReadsStudyAreaFile(t *testing.T) {
	root := createArchive(t)
	cfg := testConfig(root, "")
	cfg.StudyArea.GeoJSON = filepath.Join(t.TempDir(), "bbox.geojson")
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
		"geometry":{"type":"Polygon","coordinates":[[[0,0],[300,0],[300,300],[0,300],[0,0]]]}}]}`
	if err := os.WriteFile(cfg.StudyArea.GeoJSON, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write study area: %v", err)
	}

	runner, err := NewRunner(&Params{Config: cfg})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if _, err := runner.Process(context.Background()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
}

func TestNewRunnerRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Archive.Store = "ftp"
	if _, err := NewRunner(&Params{Config: cfg}); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
	if _, err := NewRunner(nil); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInput for nil params, got %v", err)
	}
}

func TestProcessHonoursCancellation(t *testing.T) {
	root := createArchive(t)
	runner, _ := NewRunner(&Params{Config: testConfig(root, ""), Region: geo.Rect(crs, 0, 0, 300, 300)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Process(ctx); err == nil {
		t.Error("Expected an error from a cancelled context")
	}
}
