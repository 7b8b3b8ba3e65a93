package models

import (
	"fmt"
	"math"
)

// Georef ties the pixel grid of a raster to a coordinate reference system
type Georef struct {
	// CRS is the coordinate reference system label, e.g. "EPSG:32648"
	CRS string `yaml:"crs" json:"crs"`

	// OriginX and OriginY locate the upper-left corner of the upper-left pixel
	OriginX float64 `yaml:"originX" json:"originX"`
	OriginY float64 `yaml:"originY" json:"originY"`

	// PixelSize is the side length of a square pixel in CRS units (meters for UTM)
	PixelSize float64 `yaml:"pixelSize" json:"pixelSize"`
}

// PixelCenter returns the CRS coordinate of the centre of pixel (col, row)
func (g Georef) PixelCenter(col, row int) (float64, float64) {
	x := g.OriginX + (float64(col)+0.5)*g.PixelSize
	y := g.OriginY - (float64(row)+0.5)*g.PixelSize
	return x, y
}

// PixelAt returns the pixel containing the CRS coordinate (x, y). The result
// may lie outside the raster.
func (g Georef) PixelAt(x, y float64) (int, int) {
	col := int(math.Floor((x - g.OriginX) / g.PixelSize))
	row := int(math.Floor((g.OriginY - y) / g.PixelSize))
	return col, row
}

// Raster is an immutable multi-band image. Band arrays are row-major and are
// never written after construction, so derived rasters may share them.
type Raster struct {
	// Width and Height are the raster dimensions in pixels
	Width  int
	Height int

	// Georef places the grid in space
	Georef Georef

	names []string
	bands map[string][]float64
	mask  []bool
}

// NewRaster creates an empty, fully valid raster with the given grid
func NewRaster(width, height int, georef Georef) *Raster {
	mask := make([]bool, width*height)
	for i := range mask {
		mask[i] = true
	}
	return &Raster{
		Width:  width,
		Height: height,
		Georef: georef,
		bands:  make(map[string][]float64),
		mask:   mask,
	}
}

// WithBand returns a copy of the raster with the band appended (or replaced).
// The data slice is owned by the returned raster from now on.
func (r *Raster) WithBand(name string, data []float64) (*Raster, error) {
	if len(data) != r.Width*r.Height {
		return nil, fmt.Errorf("band %s has %d values, raster has %d pixels", name, len(data), r.Width*r.Height)
	}
	out := r.shallowCopy()
	if _, exists := out.bands[name]; !exists {
		out.names = append(out.names, name)
	}
	out.bands[name] = data
	return out, nil
}

// MustWithBand is WithBand for callers that built data with the right length
func (r *Raster) MustWithBand(name string, data []float64) *Raster {
	out, err := r.WithBand(name, data)
	if err != nil {
		panic(err)
	}
	return out
}

func (r *Raster) shallowCopy() *Raster {
	out := &Raster{
		Width:  r.Width,
		Height: r.Height,
		Georef: r.Georef,
		names:  append([]string(nil), r.names...),
		bands:  make(map[string][]float64, len(r.bands)),
		mask:   r.mask,
	}
	for k, v := range r.bands {
		out.bands[k] = v
	}
	return out
}

// Len is the number of pixels
func (r *Raster) Len() int { return r.Width * r.Height }

// BandNames returns the ordered band names
func (r *Raster) BandNames() []string {
	return append([]string(nil), r.names...)
}

// HasBand reports whether the band exists
func (r *Raster) HasBand(name string) bool {
	_, ok := r.bands[name]
	return ok
}

// Band returns the read-only data of a band
func (r *Raster) Band(name string) ([]float64, bool) {
	data, ok := r.bands[name]
	return data, ok
}

// Mask returns a copy of the validity mask
func (r *Raster) Mask() []bool {
	return append([]bool(nil), r.mask...)
}

// Valid reports whether pixel i participates in computation
func (r *Raster) Valid(i int) bool {
	return r.mask[i]
}

// ValidFor reports whether pixel i is valid and the band holds a number there
func (r *Raster) ValidFor(band string, i int) bool {
	data, ok := r.bands[band]
	if !ok || !r.mask[i] {
		return false
	}
	return !math.IsNaN(data[i])
}

// Select keeps only the named bands, in the given order
func (r *Raster) Select(names ...string) (*Raster, error) {
	out := &Raster{
		Width:  r.Width,
		Height: r.Height,
		Georef: r.Georef,
		bands:  make(map[string][]float64, len(names)),
		mask:   r.mask,
	}
	for _, name := range names {
		data, ok := r.bands[name]
		if !ok {
			return nil, fmt.Errorf("band %s not found", name)
		}
		out.names = append(out.names, name)
		out.bands[name] = data
	}
	return out, nil
}

// Rename maps band names positionally: names[i] becomes the name of band i
func (r *Raster) Rename(names ...string) (*Raster, error) {
	if len(names) != len(r.names) {
		return nil, fmt.Errorf("rename needs %d names, got %d", len(r.names), len(names))
	}
	out := &Raster{
		Width:  r.Width,
		Height: r.Height,
		Georef: r.Georef,
		names:  append([]string(nil), names...),
		bands:  make(map[string][]float64, len(names)),
		mask:   r.mask,
	}
	for i, old := range r.names {
		if _, dup := out.bands[names[i]]; dup {
			return nil, fmt.Errorf("duplicate band name %s", names[i])
		}
		out.bands[names[i]] = r.bands[old]
	}
	return out, nil
}

// AddBands appends the bands of other rasters on the same grid. The validity
// mask of the result is the intersection of all masks.
func (r *Raster) AddBands(others ...*Raster) (*Raster, error) {
	out := r.shallowCopy()
	mask := r.Mask()
	for _, o := range others {
		if o.Width != r.Width || o.Height != r.Height {
			return nil, fmt.Errorf("cannot add %dx%d bands to %dx%d raster", o.Width, o.Height, r.Width, r.Height)
		}
		for _, name := range o.names {
			if _, exists := out.bands[name]; !exists {
				out.names = append(out.names, name)
			}
			out.bands[name] = o.bands[name]
		}
		for i := range mask {
			mask[i] = mask[i] && o.mask[i]
		}
	}
	out.mask = mask
	return out, nil
}

// UpdateMask ANDs keep into the validity mask. Already masked pixels stay masked.
func (r *Raster) UpdateMask(keep []bool) (*Raster, error) {
	if len(keep) != r.Len() {
		return nil, fmt.Errorf("mask has %d values, raster has %d pixels", len(keep), r.Len())
	}
	out := r.shallowCopy()
	mask := make([]bool, r.Len())
	for i := range mask {
		mask[i] = r.mask[i] && keep[i]
	}
	out.mask = mask
	return out, nil
}

// Unmask replaces every masked or NaN value with fill and marks all pixels valid
func (r *Raster) Unmask(fill float64) *Raster {
	out := r.shallowCopy()
	for _, name := range r.names {
		src := r.bands[name]
		dst := make([]float64, len(src))
		for i, v := range src {
			if !r.mask[i] || math.IsNaN(v) {
				dst[i] = fill
			} else {
				dst[i] = v
			}
		}
		out.bands[name] = dst
	}
	mask := make([]bool, r.Len())
	for i := range mask {
		mask[i] = true
	}
	out.mask = mask
	return out
}

// PixelCenter returns the CRS coordinate of a pixel centre
func (r *Raster) PixelCenter(col, row int) (float64, float64) {
	return r.Georef.PixelCenter(col, row)
}

// Index converts a CRS coordinate to a pixel index; ok is false outside the grid
func (r *Raster) Index(x, y float64) (int, bool) {
	col, row := r.Georef.PixelAt(x, y)
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, false
	}
	return row*r.Width + col, true
}

// SameGrid reports whether two rasters share dimensions and georeferencing
func (r *Raster) SameGrid(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height && r.Georef == o.Georef
}

// Footprint returns the CRS extent of the raster as minX, minY, maxX, maxY
func (r *Raster) Footprint() (float64, float64, float64, float64) {
	g := r.Georef
	return g.OriginX, g.OriginY - float64(r.Height)*g.PixelSize,
		g.OriginX + float64(r.Width)*g.PixelSize, g.OriginY
}

// Area is anything that can decide whether a CRS coordinate lies inside it
type Area interface {
	Contains(x, y float64) bool
}

// Clip masks every pixel whose centre lies outside area
func (r *Raster) Clip(area Area) *Raster {
	out := r.shallowCopy()
	mask := make([]bool, r.Len())
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			i := row*r.Width + col
			if !r.mask[i] {
				continue
			}
			x, y := r.PixelCenter(col, row)
			mask[i] = area.Contains(x, y)
		}
	}
	out.mask = mask
	return out
}
