package geo

import (
	"math"
	"testing"
)

func TestRectContains(t *testing.T) {
	r := Rect("EPSG:32648", 0, 0, 100, 50)

	tests := []struct {
		x, y float64
		want bool
	}{
		{10, 10, true},
		{99, 49, true},
		{-1, 10, false},
		{50, 60, false},
	}
	for _, tc := range tests {
		if got := r.Contains(tc.x, tc.y); got != tc.want {
			t.Errorf("Contains(%v, %v) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}

	if math.Abs(r.Area()-5000) > 1e-9 {
		t.Errorf("Expected area 5000, got %f", r.Area())
	}
}

func TestFromGeoJSONFeatureCollection(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"name": "lake"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]
			}
		}, {
			"type": "Feature",
			"properties": {},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[20,0],[30,0],[30,10],[20,10],[20,0]]]
			}
		}]
	}`)

	r, err := FromGeoJSON(data, "EPSG:32648")
	if err != nil {
		t.Fatalf("Failed to parse region: %v", err)
	}
	if !r.Contains(5, 5) || !r.Contains(25, 5) {
		t.Errorf("Expected both polygons to be part of the region")
	}
	if r.Contains(15, 5) {
		t.Errorf("Gap between polygons should be outside the region")
	}
	if !r.Intersects(9, 9, 40, 40) {
		t.Errorf("Expected bounding boxes to intersect")
	}
	if r.Intersects(100, 100, 200, 200) {
		t.Errorf("Expected disjoint bounding boxes")
	}
}

func TestFromGeoJSONBareGeometry(t *testing.T) {
	data := []byte(`{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}`)
	r, err := FromGeoJSON(data, "")
	if err != nil {
		t.Fatalf("Failed to parse geometry: %v", err)
	}
	if !r.Contains(1, 1) {
		t.Errorf("Expected point inside polygon")
	}
}

func TestFromGeoJSONWithoutPolygons(t *testing.T) {
	data := []byte(`{"type":"Point","coordinates":[1,2]}`)
	if _, err := FromGeoJSON(data, ""); err == nil {
		t.Errorf("Expected an error for a point geometry")
	}
}
