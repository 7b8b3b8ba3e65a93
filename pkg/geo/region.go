// Package geo holds the study area used to bound reductions and sampling.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is a polygonal extent in a projected CRS. It is fixed for a run.
type Region struct {
	CRS      string
	geometry orb.MultiPolygon
	bound    orb.Bound
}

// NewRegion wraps one or more polygons
func NewRegion(crs string, polygons ...orb.Polygon) (*Region, error) {
	if len(polygons) == 0 {
		return nil, fmt.Errorf("region needs at least one polygon")
	}
	mp := orb.MultiPolygon(polygons)
	for _, p := range mp {
		if len(p) == 0 || len(p[0]) < 4 {
			return nil, fmt.Errorf("region polygon needs a closed outer ring of at least 4 points")
		}
	}
	return &Region{CRS: crs, geometry: mp, bound: mp.Bound()}, nil
}

// Rect is a convenience constructor for an axis-aligned rectangular region
func Rect(crs string, minX, minY, maxX, maxY float64) *Region {
	ring := orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
	r, _ := NewRegion(crs, orb.Polygon{ring})
	return r
}

// FromGeoJSON reads every Polygon and MultiPolygon of a FeatureCollection
// (or a bare geometry) and unions them into one region
func FromGeoJSON(data []byte, crs string) (*Region, error) {
	var polygons []orb.Polygon

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			polygons = append(polygons, polygonsOf(f.Geometry)...)
		}
	} else {
		g, gerr := geojson.UnmarshalGeometry(data)
		if gerr != nil {
			return nil, fmt.Errorf("error parsing region GeoJSON: %w", gerr)
		}
		polygons = polygonsOf(g.Geometry())
	}

	if len(polygons) == 0 {
		return nil, fmt.Errorf("region GeoJSON contains no polygons")
	}
	return NewRegion(crs, polygons...)
}

func polygonsOf(g orb.Geometry) []orb.Polygon {
	switch geom := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{geom}
	case orb.MultiPolygon:
		return []orb.Polygon(geom)
	case orb.Bound:
		return []orb.Polygon{geom.ToPolygon()}
	default:
		return nil
	}
}

// Contains reports whether (x, y) lies inside the region
func (r *Region) Contains(x, y float64) bool {
	p := orb.Point{x, y}
	if !r.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(r.geometry, p)
}

// Bound returns the bounding box of the region
func (r *Region) Bound() orb.Bound {
	return r.bound
}

// Intersects reports whether the region's bounding box overlaps the extent
func (r *Region) Intersects(minX, minY, maxX, maxY float64) bool {
	other := orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
	return r.bound.Intersects(other)
}

// Area is the planar area of the region in squared CRS units
func (r *Region) Area() float64 {
	return planar.Area(r.geometry)
}
