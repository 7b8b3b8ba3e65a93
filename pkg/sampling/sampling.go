// Package sampling draws labelled sample points from a binary mask, attaches
// image values to them and splits them into training and validation sets.
package sampling

import (
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/geo"
)

// Stratified draws up to perClass points labelled 1 and up to perClass points
// labelled 0 from the valid pixels of band inside region. The value of band
// decides the class. Each class uses its own stream seeded with seed, so the
// draw is reproducible. Water points come first.
func Stratified(mask *models.Raster, band string, region *geo.Region, perClass int, seed uint64) (models.SampleSet, error) {
	data, ok := mask.Band(band)
	if !ok {
		return nil, apperr.InvalidInput("sample", "band %s not found", band)
	}
	if perClass < 0 {
		return nil, apperr.InvalidInput("sample", "negative sample count %d", perClass)
	}

	candidates := map[int][]int{0: nil, 1: nil}
	for row := 0; row < mask.Height; row++ {
		for col := 0; col < mask.Width; col++ {
			i := row*mask.Width + col
			if !mask.ValidFor(band, i) {
				continue
			}
			if region != nil {
				x, y := mask.PixelCenter(col, row)
				if !region.Contains(x, y) {
					continue
				}
			}
			class := 0
			if data[i] != 0 {
				class = 1
			}
			candidates[class] = append(candidates[class], i)
		}
	}

	var out models.SampleSet
	for _, class := range []int{1, 0} {
		picked := pick(candidates[class], perClass, seed)
		for _, i := range picked {
			col, row := i%mask.Width, i/mask.Width
			x, y := mask.PixelCenter(col, row)
			out = append(out, models.SamplePoint{
				X:        x,
				Y:        y,
				Class:    class,
				Features: map[string]float64{band: data[i]},
			})
		}
	}
	return out, nil
}

// pick returns n indices chosen by a seeded permutation, in raster order
func pick(indices []int, n int, seed uint64) []int {
	if n >= len(indices) {
		return append([]int(nil), indices...)
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(indices))
	picked := make([]int, n)
	for k := 0; k < n; k++ {
		picked[k] = indices[perm[k]]
	}
	sort.Ints(picked)
	return picked
}

// Attach copies the values of bands at each point's location onto the point.
// Bands masked at the point are left unset.
func Attach(samples models.SampleSet, img *models.Raster, bands []string) models.SampleSet {
	out := make(models.SampleSet, len(samples))
	for k, p := range samples {
		q := p.Clone()
		if i, ok := img.Index(p.X, p.Y); ok {
			for _, b := range bands {
				if !img.ValidFor(b, i) {
					continue
				}
				data, _ := img.Band(b)
				q.Features[b] = data[i]
			}
		}
		out[k] = q
	}
	return out
}

// SampleRegions samples the image at every point and keeps the points where
// all bands are valid. The returned points carry the class and the image
// values only.
func SampleRegions(samples models.SampleSet, img *models.Raster, bands []string) models.SampleSet {
	var out models.SampleSet
	for _, p := range samples {
		i, ok := img.Index(p.X, p.Y)
		if !ok {
			continue
		}
		features := make(map[string]float64, len(bands))
		complete := true
		for _, b := range bands {
			if !img.ValidFor(b, i) {
				complete = false
				break
			}
			data, _ := img.Band(b)
			features[b] = data[i]
		}
		if !complete {
			continue
		}
		out = append(out, models.SamplePoint{X: p.X, Y: p.Y, Class: p.Class, Features: features, Random: p.Random})
	}
	return out
}

// RandomColumn assigns each point a uniform value in [0, 1) from a stream
// seeded with seed, in set order
func RandomColumn(samples models.SampleSet, seed uint64) models.SampleSet {
	u := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(seed)}
	out := make(models.SampleSet, len(samples))
	for k, p := range samples {
		q := p.Clone()
		q.Random = u.Rand()
		out[k] = q
	}
	return out
}

// RandomSplit assigns the random column and splits the set: points with
// random < fraction train, the rest validate
func RandomSplit(samples models.SampleSet, seed uint64, fraction float64) (training, validation models.SampleSet) {
	for _, p := range RandomColumn(samples, seed) {
		if p.Random < fraction {
			training = append(training, p)
		} else {
			validation = append(validation, p)
		}
	}
	return training, validation
}
