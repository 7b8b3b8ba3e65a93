package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"surfacewater/internal/models"
)

// Layer describes how to draw bands of a raster: one band through a palette
// or three bands as red, green and blue. Values are stretched linearly from
// Min to Max.
type Layer struct {
	Name    string
	Bands   []string
	Min     float64
	Max     float64
	Palette []string
}

// Viewer renders quicklook layers of a raster
type Viewer struct {
	image *models.Raster
}

// NewViewer creates a viewer over a raster
func NewViewer(img *models.Raster) *Viewer {
	return &Viewer{image: img}
}

// ParseColor accepts a CSS color name or a hex triplet with or without #
func ParseColor(s string) (colorful.Color, error) {
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		out, _ := colorful.MakeColor(c)
		return out, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid palette color %q", s)
	}
	return c, nil
}

// ParsePalette converts palette entries to colors
func ParsePalette(entries []string) ([]colorful.Color, error) {
	out := make([]colorful.Color, len(entries))
	for i, e := range entries {
		c, err := ParseColor(e)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// stretch maps v to [0, 1] between lo and hi
func stretch(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}

// ramp picks the palette color at position t in [0, 1], blending
// neighbouring entries in Lab space
func ramp(palette []colorful.Color, t float64) colorful.Color {
	if len(palette) == 1 {
		return palette[0]
	}
	pos := t * float64(len(palette)-1)
	i := int(math.Floor(pos))
	if i >= len(palette)-1 {
		return palette[len(palette)-1]
	}
	return palette[i].BlendLab(palette[i+1], pos-float64(i)).Clamped()
}

// Render draws the layer. Masked pixels are fully transparent.
func (v *Viewer) Render(layer Layer) (image.Image, error) {
	img := v.image
	switch len(layer.Bands) {
	case 1, 3:
	default:
		return nil, fmt.Errorf("layer %s: need 1 or 3 bands, got %d", layer.Name, len(layer.Bands))
	}

	data := make([][]float64, len(layer.Bands))
	for k, b := range layer.Bands {
		d, ok := img.Band(b)
		if !ok {
			return nil, fmt.Errorf("layer %s: band %s not found", layer.Name, b)
		}
		data[k] = d
	}

	palette, err := ParsePalette(layer.Palette)
	if err != nil {
		return nil, err
	}
	if len(layer.Bands) == 1 && len(palette) == 0 {
		palette = []colorful.Color{{R: 0, G: 0, B: 0}, {R: 1, G: 1, B: 1}}
	}

	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := y*img.Width + x
			valid := true
			for _, b := range layer.Bands {
				if !img.ValidFor(b, i) {
					valid = false
					break
				}
			}
			if !valid {
				continue
			}

			var c colorful.Color
			if len(layer.Bands) == 1 {
				c = ramp(palette, stretch(data[0][i], layer.Min, layer.Max))
			} else {
				c = colorful.Color{
					R: stretch(data[0][i], layer.Min, layer.Max),
					G: stretch(data[1][i], layer.Min, layer.Max),
					B: stretch(data[2][i], layer.Min, layer.Max),
				}
			}
			r, g, b := c.RGB255()
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out, nil
}

// SaveLayer writes a rendered layer as PNG
func (v *Viewer) SaveLayer(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveLayers renders every layer to <outputDir>/<name>.png
func (v *Viewer) SaveLayers(layers []Layer, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var written []string
	for _, layer := range layers {
		img, err := v.Render(layer)
		if err != nil {
			return written, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s.png", layer.Name))
		if err := v.SaveLayer(img, filename); err != nil {
			return written, err
		}
		written = append(written, filename)
	}

	return written, nil
}
