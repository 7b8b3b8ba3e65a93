package composite

import (
	"testing"

	"surfacewater/internal/models"
)

var grid = models.Georef{CRS: "EPSG:32648", OriginX: 0, OriginY: 20, PixelSize: 10}

func scene(value float64, valid []bool) *models.Raster {
	img := models.NewRaster(2, 2, grid).
		MustWithBand("B3", []float64{value, value, value, value}).
		MustWithBand("B8", []float64{value + 1, value + 1, value + 1, value + 1})
	img, _ = img.UpdateMask(valid)
	return img
}

func TestMosaicPrefersLaterScenes(t *testing.T) {
	older := scene(1, []bool{true, true, true, false})
	newer := scene(2, []bool{true, false, false, false})

	m, err := Mosaic([]*models.Raster{older, newer})
	if err != nil {
		t.Fatalf("Mosaic failed: %v", err)
	}
	b3, _ := m.Band("B3")
	if b3[0] != 2 {
		t.Errorf("Expected later scene on top, got %f", b3[0])
	}
	if b3[1] != 1 || b3[2] != 1 {
		t.Errorf("Expected gaps filled from the older scene, got %v", b3)
	}
	if m.Valid(3) {
		t.Errorf("Expected pixel masked in every scene to stay masked")
	}
}

func TestMosaicKeepsSharedBands(t *testing.T) {
	a := scene(1, []bool{true, true, true, true})
	b, _ := scene(2, []bool{true, true, true, true}).Select("B3")

	m, err := Mosaic([]*models.Raster{a, b})
	if err != nil {
		t.Fatalf("Mosaic failed: %v", err)
	}
	if names := m.BandNames(); len(names) != 1 || names[0] != "B3" {
		t.Errorf("Expected only shared band B3, got %v", names)
	}
}

func TestMosaicRejectsDifferentGrids(t *testing.T) {
	a := scene(1, []bool{true, true, true, true})
	b := models.NewRaster(3, 3, grid)
	if _, err := Mosaic([]*models.Raster{a, b}); err == nil {
		t.Errorf("Expected grid mismatch error")
	}
	if _, err := Mosaic(nil); err == nil {
		t.Errorf("Expected error for empty input")
	}
}
