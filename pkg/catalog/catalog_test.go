package catalog

import (
	"bytes"
	"image"
	"math"
	"testing"

	"golang.org/x/image/tiff"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/fileaccess"
	"surfacewater/pkg/geo"
)

func nodata(v float64) *float64 { return &v }

// createScene builds a 4x4 10 m raster whose B3 is 0.1*i and B8 is 0.05*i
func createScene(originX float64) *models.Raster {
	b3 := make([]float64, 16)
	b8 := make([]float64, 16)
	for i := range b3 {
		b3[i] = 0.1 * float64(i)
		b8[i] = 0.05 * float64(i)
	}
	return models.NewRaster(4, 4, models.Georef{CRS: "EPSG:32648", OriginX: originX, OriginY: 40, PixelSize: 10}).
		MustWithBand("B3", b3).MustWithBand("B8", b8)
}

func createArchive(t *testing.T) *Catalog {
	t.Helper()
	cat := New(&fileaccess.FSAccess{}, fileaccess.Location{Bucket: t.TempDir()})

	bands := []BandFile{
		{Name: "B3", File: "B3.tif", Scale: 0.0001, NoData: nodata(0)},
		{Name: "B8", File: "B8.tif", Scale: 0.0001, NoData: nodata(0)},
	}
	scenes := []struct {
		id, date string
		cloud    float64
		originX  float64
	}{
		{"S2B_0110", "2024-01-10", 40, 0},
		{"S2A_0105", "2024-01-05", 3, 0},
		{"S2A_0201", "2024-02-01", 5, 0},
		{"S2A_FAR", "2024-01-07", 1, 10000},
	}
	for _, s := range scenes {
		m := Manifest{
			ID:         s.id,
			Collection: "COPERNICUS/S2_SR",
			Date:       s.date,
			Properties: map[string]float64{CloudyPixelPercentage: s.cloud},
			Bands:      bands,
		}
		if err := cat.WriteScene(m, createScene(s.originX)); err != nil {
			t.Fatalf("WriteScene %s failed: %v", s.id, err)
		}
	}
	return cat
}

func TestCollectionOrderAndFilters(t *testing.T) {
	cat := createArchive(t)

	col, err := cat.Collection("COPERNICUS/S2_SR")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	if col.Size() != 4 {
		t.Fatalf("Expected 4 scenes, got %d", col.Size())
	}
	if col.Scenes()[0].ID != "S2A_0105" {
		t.Errorf("Expected date ordering, first scene is %s", col.Scenes()[0].ID)
	}

	dates, err := FilterDate("2024-01-01", "2024-02-01")
	if err != nil {
		t.Fatalf("FilterDate failed: %v", err)
	}
	region := geo.Rect("EPSG:32648", 0, 0, 40, 40)
	filtered := col.Filter(FilterBounds(region), dates, PropertyLessThan(CloudyPixelPercentage, 15))

	if filtered.Size() != 1 || filtered.Scenes()[0].ID != "S2A_0105" {
		ids := []string{}
		for _, m := range filtered.Scenes() {
			ids = append(ids, m.ID)
		}
		t.Errorf("Expected only S2A_0105, got %v", ids)
	}
}

func TestFilterDateRejectsBadDates(t *testing.T) {
	if _, err := FilterDate("2024-13-01", "2024-02-01"); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
}

func TestPropertyEquals(t *testing.T) {
	m := Manifest{Properties: map[string]float64{WRSPath: 125, WRSRow: 39}}
	if !PropertyEquals(WRSPath, 125)(m) || PropertyEquals(WRSRow, 40)(m) {
		t.Error("Unexpected PropertyEquals result")
	}
	if PropertyEquals("MISSING", 0)(m) {
		t.Error("Expected missing property to fail the filter")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cat := createArchive(t)
	col, _ := cat.Collection("COPERNICUS/S2_SR")

	rasters, err := col.Filter(PropertyLessThan(CloudyPixelPercentage, 4)).Load("B3", "B8")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rasters) != 2 {
		t.Fatalf("Expected 2 rasters, got %d", len(rasters))
	}

	r := rasters[0]
	if r.Width != 4 || r.Georef.PixelSize != 10 {
		t.Errorf("Unexpected grid %dx%d at %f", r.Width, r.Height, r.Georef.PixelSize)
	}
	if r.Valid(0) {
		t.Error("Expected pixel 0 (stored 0) to be masked as nodata")
	}
	b3, _ := r.Band("B3")
	for i := 1; i < 16; i++ {
		if math.Abs(b3[i]-0.1*float64(i)) > 1e-9 {
			t.Errorf("Expected B3[%d] = %f, got %f", i, 0.1*float64(i), b3[i])
		}
	}
}

func TestLoadUnknownBand(t *testing.T) {
	cat := createArchive(t)
	col, _ := cat.Collection("COPERNICUS/S2_SR")
	if _, err := cat.Load(col.Scenes()[0], "SCL"); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected InvalidInput, got %v", err)
	}
}

func TestMissingCollectionIsEmpty(t *testing.T) {
	cat := createArchive(t)
	col, err := cat.Collection("LANDSAT/LC08/C02/T1_L2")
	if err != nil {
		t.Fatalf("Expected empty collection, got %v", err)
	}
	if col.Size() != 0 {
		t.Errorf("Expected 0 scenes, got %d", col.Size())
	}
}

func TestDecode8Bit(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(10 * i)
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	values, width, height, err := decodeBand(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeBand failed: %v", err)
	}
	if width != 3 || height != 2 {
		t.Fatalf("Expected 3x2, got %dx%d", width, height)
	}
	if values[5] != 50 {
		t.Errorf("Expected 50, got %f", values[5])
	}
}

func TestCatalogOnS3(t *testing.T) {
	client := fileaccess.NewMemoryS3()
	cat := New(fileaccess.MakeS3Access(client), fileaccess.Location{Bucket: "archive", Prefix: "scenes"})

	m := Manifest{
		ID:         "LC08_125039_20240107",
		Collection: "LANDSAT/LC08/C02/T1_L2",
		Date:       "2024-01-07",
		Properties: map[string]float64{WRSPath: 125, WRSRow: 39},
		Bands:      []BandFile{{Name: "B3", File: "SR_B3.tif", Scale: 0.0001}},
	}
	if err := cat.WriteScene(m, createScene(0)); err != nil {
		t.Fatalf("WriteScene failed: %v", err)
	}

	col, err := cat.Collection("LANDSAT/LC08/C02/T1_L2")
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	rasters, err := col.Filter(PropertyEquals(WRSPath, 125), PropertyEquals(WRSRow, 39)).Load()
	if err != nil || len(rasters) != 1 {
		t.Fatalf("Expected one raster, got %d (%v)", len(rasters), err)
	}
	if !rasters[0].Valid(0) {
		t.Error("Expected pixel 0 valid without nodata")
	}
}
