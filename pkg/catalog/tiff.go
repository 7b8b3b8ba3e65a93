package catalog

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/tiff"

	"surfacewater/internal/models"
)

// decodeBand reads a single-band 8 or 16 bit TIFF as stored integer values
func decodeBand(data []byte) ([]float64, int, int, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	values := make([]float64, width*height)

	switch g := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				values[y*width+x] = float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				values[y*width+x] = float64(g.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		return nil, 0, 0, fmt.Errorf("unsupported TIFF pixel type %T, want 8 or 16 bit grayscale", img)
	}
	return values, width, height, nil
}

// EncodeBand writes a band as a 16 bit TIFF. Values are stored as
// round((v - offset) / scale) clamped to [0, 65535]; invalid pixels get
// nodata.
func EncodeBand(r *models.Raster, band string, file BandFile) ([]byte, error) {
	data, ok := r.Band(band)
	if !ok {
		return nil, fmt.Errorf("band %s not found", band)
	}
	nodata := uint16(0)
	if file.NoData != nil {
		nodata = uint16(*file.NoData)
	}

	img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
	for i, v := range data {
		stored := nodata
		if r.ValidFor(band, i) {
			s := math.Round((v - file.Offset) / file.scale())
			stored = uint16(math.Max(0, math.Min(math.MaxUint16, s)))
		}
		img.Pix[2*i] = uint8(stored >> 8)
		img.Pix[2*i+1] = uint8(stored)
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
