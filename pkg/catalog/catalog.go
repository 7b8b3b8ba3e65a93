// Package catalog queries and loads scenes from an archive of per-scene
// manifests and single-band TIFF files.
package catalog

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/fileaccess"
	"surfacewater/pkg/geo"
)

// Catalog is a scene archive rooted at a location of a file store
type Catalog struct {
	store fileaccess.FileAccess
	root  fileaccess.Location
}

func New(store fileaccess.FileAccess, root fileaccess.Location) *Catalog {
	return &Catalog{store: store, root: root}
}

// Collection lists every scene of the named collection, ordered by date then id
func (c *Catalog) Collection(name string) (*Collection, error) {
	keys, err := c.store.ListObjects(c.root.Bucket, c.root.Key(name+"/"))
	if err != nil {
		if c.store.IsNotFoundError(err) {
			return &Collection{catalog: c, name: name}, nil
		}
		return nil, errors.Wrapf(err, "listing collection %s", name)
	}

	col := &Collection{catalog: c, name: name}
	for _, key := range keys {
		if path.Base(key) != ManifestFile {
			continue
		}
		data, err := c.store.ReadObject(c.root.Bucket, key)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", key)
		}
		m, err := ParseManifest(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", key)
		}
		m.dir = path.Dir(key)
		col.scenes = append(col.scenes, m)
	}
	sort.SliceStable(col.scenes, func(i, j int) bool {
		if col.scenes[i].Date != col.scenes[j].Date {
			return col.scenes[i].Date < col.scenes[j].Date
		}
		return col.scenes[i].ID < col.scenes[j].ID
	})
	return col, nil
}

// WriteScene stores a raster as a new scene: one TIFF per band listed in
// m.Bands and the manifest. Grid fields of m are taken from the raster.
func (c *Catalog) WriteScene(m Manifest, r *models.Raster) error {
	m.Width, m.Height, m.Georef = r.Width, r.Height, r.Georef
	dir := c.root.Key(m.Collection + "/" + m.ID)

	for _, b := range m.Bands {
		data, err := EncodeBand(r, b.Name, b)
		if err != nil {
			return errors.Wrapf(err, "encoding %s of scene %s", b.Name, m.ID)
		}
		if err := c.store.WriteObject(c.root.Bucket, dir+"/"+b.File, data); err != nil {
			return errors.Wrapf(err, "writing %s of scene %s", b.File, m.ID)
		}
	}

	doc, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return c.store.WriteObject(c.root.Bucket, dir+"/"+ManifestFile, doc)
}

// Filter decides whether a scene is kept by a query
type Filter func(m Manifest) bool

// FilterBounds keeps scenes whose footprint intersects the region bound
func FilterBounds(region *geo.Region) Filter {
	return func(m Manifest) bool {
		return region.Intersects(m.Footprint())
	}
}

// FilterDate keeps scenes acquired in [start, end). Dates use DateLayout.
func FilterDate(start, end string) (Filter, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, apperr.InvalidInput("filterDate", "bad start date %q", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, apperr.InvalidInput("filterDate", "bad end date %q", end)
	}
	return func(m Manifest) bool {
		t, err := m.Time()
		if err != nil {
			return false
		}
		return !t.Before(s) && t.Before(e)
	}, nil
}

// PropertyLessThan keeps scenes whose numeric property is below limit
func PropertyLessThan(name string, limit float64) Filter {
	return func(m Manifest) bool {
		v, ok := m.Property(name)
		return ok && v < limit
	}
}

// PropertyEquals keeps scenes whose numeric property equals value
func PropertyEquals(name string, value float64) Filter {
	return func(m Manifest) bool {
		v, ok := m.Property(name)
		return ok && v == value
	}
}

// Collection is an ordered set of scene manifests
type Collection struct {
	catalog *Catalog
	name    string
	scenes  []Manifest
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Size() int { return len(c.scenes) }

// Scenes returns the manifests in order
func (c *Collection) Scenes() []Manifest {
	return append([]Manifest(nil), c.scenes...)
}

// Filter returns the scenes passing every filter
func (c *Collection) Filter(filters ...Filter) *Collection {
	out := &Collection{catalog: c.catalog, name: c.name}
	for _, m := range c.scenes {
		keep := true
		for _, f := range filters {
			if !f(m) {
				keep = false
				break
			}
		}
		if keep {
			out.scenes = append(out.scenes, m)
		}
	}
	return out
}

// Load reads the named bands of every scene in order. No names means all bands.
func (c *Collection) Load(bands ...string) ([]*models.Raster, error) {
	out := make([]*models.Raster, 0, len(c.scenes))
	for _, m := range c.scenes {
		r, err := c.catalog.Load(m, bands...)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Load reads bands of one scene into a raster with physical values
func (c *Catalog) Load(m Manifest, bands ...string) (*models.Raster, error) {
	if len(bands) == 0 {
		for _, b := range m.Bands {
			bands = append(bands, b.Name)
		}
	}
	dir := m.dir
	if dir == "" {
		dir = c.root.Key(m.Collection + "/" + m.ID)
	}

	r := models.NewRaster(m.Width, m.Height, m.Georef)
	keep := make([]bool, m.Width*m.Height)
	for i := range keep {
		keep[i] = true
	}

	for _, name := range bands {
		file, ok := m.Band(name)
		if !ok {
			return nil, apperr.InvalidInput("load", "scene %s has no band %s (bands: %s)", m.ID, name, strings.Join(bandNames(m), ","))
		}
		data, err := c.store.ReadObject(c.root.Bucket, dir+"/"+file.File)
		if err != nil {
			return nil, errors.Wrapf(err, "reading band %s of scene %s", name, m.ID)
		}
		stored, width, height, err := decodeBand(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding band %s of scene %s", name, m.ID)
		}
		if width != m.Width || height != m.Height {
			return nil, apperr.Mismatched("load", "manifest pixels", m.Width*m.Height, name+" pixels", width*height)
		}

		values := make([]float64, len(stored))
		for i, s := range stored {
			if file.NoData != nil && s == *file.NoData {
				keep[i] = false
				values[i] = 0
				continue
			}
			values[i] = s*file.scale() + file.Offset
		}
		if r, err = r.WithBand(name, values); err != nil {
			return nil, err
		}
	}
	return r.UpdateMask(keep)
}

func bandNames(m Manifest) []string {
	names := make([]string, len(m.Bands))
	for i, b := range m.Bands {
		names[i] = b.Name
	}
	return names
}
