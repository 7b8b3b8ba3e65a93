package models

// ClassProperty is the property name holding the binary label of a sample
const ClassProperty = "class"

// SamplePoint represents a labelled location with the band values sampled there
type SamplePoint struct {
	// X and Y are CRS coordinates of the pixel centre the point was drawn from
	X, Y float64

	// Class is 1 for water, 0 otherwise
	Class int

	// Features maps band name to the value sampled at the point
	Features map[string]float64

	// Random is the value of the seeded random column used for splitting
	Random float64
}

// Clone returns a deep copy of the point
func (p SamplePoint) Clone() SamplePoint {
	out := p
	out.Features = make(map[string]float64, len(p.Features))
	for k, v := range p.Features {
		out.Features[k] = v
	}
	return out
}

// HasFeatures reports whether every named band has a value
func (p SamplePoint) HasFeatures(bands []string) bool {
	for _, b := range bands {
		if _, ok := p.Features[b]; !ok {
			return false
		}
	}
	return true
}

// Vector returns the feature values in the given band order
func (p SamplePoint) Vector(bands []string) []float64 {
	v := make([]float64, len(bands))
	for i, b := range bands {
		v[i] = p.Features[b]
	}
	return v
}

// SampleSet is an ordered collection of sample points
type SampleSet []SamplePoint

// CountClass returns how many points carry the label
func (s SampleSet) CountClass(class int) int {
	n := 0
	for _, p := range s {
		if p.Class == class {
			n++
		}
	}
	return n
}

// Filter returns the points for which keep is true
func (s SampleSet) Filter(keep func(SamplePoint) bool) SampleSet {
	var out SampleSet
	for _, p := range s {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
