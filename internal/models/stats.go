package models

// BandStats maps band names to a reduced scalar. A band is absent when the
// reduction saw no valid pixel, which is not the same as a zero value.
type BandStats map[string]float64

// Get returns the statistic and whether the reduction produced one
func (s BandStats) Get(band string) (float64, bool) {
	v, ok := s[band]
	return v, ok
}

// GetOrDefault mirrors a dictionary lookup with a default
func (s BandStats) GetOrDefault(band string, def float64) float64 {
	if v, ok := s[band]; ok {
		return v
	}
	return def
}

// Range is a min/max pair produced by a min/max reduction
type Range struct {
	Min float64
	Max float64
}

// RangeStats maps band names to their min/max over a region
type RangeStats map[string]Range
