package catalog

import (
	"time"

	"gopkg.in/yaml.v3"

	"surfacewater/internal/models"
)

// DateLayout is the layout of manifest dates and query bounds
const DateLayout = "2006-01-02"

// ManifestFile is the name of the scene description inside a scene directory
const ManifestFile = "manifest.yaml"

// Well-known scene properties
const (
	CloudyPixelPercentage = "CLOUDY_PIXEL_PERCENTAGE"
	WRSPath               = "WRS_PATH"
	WRSRow                = "WRS_ROW"
)

// BandFile describes how one band of a scene is stored. Physical values are
// stored*Scale + Offset; pixels equal to NoData are masked.
type BandFile struct {
	Name   string   `yaml:"name"`
	File   string   `yaml:"file"`
	Scale  float64  `yaml:"scale,omitempty"`
	Offset float64  `yaml:"offset,omitempty"`
	NoData *float64 `yaml:"nodata,omitempty"`
}

func (b BandFile) scale() float64 {
	if b.Scale == 0 {
		return 1
	}
	return b.Scale
}

// Manifest describes one scene in the archive
type Manifest struct {
	ID         string             `yaml:"id"`
	Collection string             `yaml:"collection"`
	Date       string             `yaml:"date"`
	Width      int                `yaml:"width"`
	Height     int                `yaml:"height"`
	Georef     models.Georef      `yaml:"georef"`
	Properties map[string]float64 `yaml:"properties,omitempty"`
	Bands      []BandFile         `yaml:"bands"`

	// dir is the object key of the scene directory
	dir string
}

// ParseManifest decodes a manifest document
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	err := yaml.Unmarshal(data, &m)
	return m, err
}

// Time parses the acquisition date
func (m Manifest) Time() (time.Time, error) {
	return time.Parse(DateLayout, m.Date)
}

// Footprint returns the CRS extent of the scene as minX, minY, maxX, maxY
func (m Manifest) Footprint() (float64, float64, float64, float64) {
	return models.NewRaster(m.Width, m.Height, m.Georef).Footprint()
}

// Band returns the storage description of the named band
func (m Manifest) Band(name string) (BandFile, bool) {
	for _, b := range m.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return BandFile{}, false
}

// Property returns a numeric scene property
func (m Manifest) Property(name string) (float64, bool) {
	v, ok := m.Properties[name]
	return v, ok
}
