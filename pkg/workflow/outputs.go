package workflow

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"surfacewater/internal/models"
	"surfacewater/pkg/catalog"
	"surfacewater/pkg/classify"
	"surfacewater/pkg/fileaccess"
	"surfacewater/pkg/glcm"
	"surfacewater/pkg/visualization"
)

// classNoData marks invalid pixels in classification TIFFs
const classNoData = 255

// Step 11: quicklooks, classified rasters, report and metrics. Every output
// is optional.
func (r *Runner) writeOutputs(ctx context.Context) error {
	out := r.cfg.Output
	if out.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	if out.Quicklooks {
		files, err := r.writeQuicklooks(filepath.Join(out.Dir, "quicklooks"))
		if err != nil {
			return errors.Wrap(err, "writing quicklooks")
		}
		r.report.Outputs = append(r.report.Outputs, files...)
	}

	if out.Rasters {
		files, err := r.writeClassifications(out.Dir)
		if err != nil {
			return errors.Wrap(err, "writing classified rasters")
		}
		r.report.Outputs = append(r.report.Outputs, files...)
	}

	if out.MetricsFile != "" {
		path := filepath.Join(out.Dir, out.MetricsFile)
		if err := r.metrics.WriteTextfile(path); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
		r.report.Outputs = append(r.report.Outputs, path)
	}

	if out.ReportFile != "" {
		path := filepath.Join(out.Dir, out.ReportFile)
		r.report.Outputs = append(r.report.Outputs, path)
		data, err := yaml.Marshal(&r.report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return errors.Wrap(err, "writing report")
		}
	}

	r.log.Info(component, "outputs written", map[string]interface{}{"files": len(r.report.Outputs)})
	return nil
}

func (r *Runner) writeQuicklooks(dir string) ([]string, error) {
	var written []string
	save := func(img *models.Raster, layers []visualization.Layer) error {
		var usable []visualization.Layer
		for _, l := range layers {
			if hasBands(img, l.Bands) {
				usable = append(usable, l)
			}
		}
		files, err := visualization.NewViewer(img).SaveLayers(usable, dir)
		written = append(written, files...)
		return err
	}

	if err := save(r.sentinel, []visualization.Layer{
		{Name: "sentinel_rgb", Bands: []string{"B4", "B3", "B2"}, Min: 0, Max: 0.3},
	}); err != nil {
		return written, err
	}
	if err := save(r.ndwi, []visualization.Layer{
		{Name: "ndwi", Bands: []string{NDWIBand}, Min: -1, Max: 1, Palette: []string{"blue", "white", "green"}},
	}); err != nil {
		return written, err
	}
	if err := save(r.waterMask, []visualization.Layer{
		{Name: "water_mask", Bands: []string{WaterMaskBand}, Min: 0, Max: 1, Palette: []string{"white", "blue"}},
	}); err != nil {
		return written, err
	}

	extendedLayers := []visualization.Layer{
		{Name: "landsat_rgb", Bands: []string{"B4", "B3", "B2"}, Min: 0, Max: 0.3},
	}
	for _, b := range glcm.TextureBands(r.cfg.GLCM.Band) {
		extendedLayers = append(extendedLayers, visualization.Layer{Name: b, Bands: []string{b}, Min: 0, Max: 1})
	}
	if err := save(r.extended, extendedLayers); err != nil {
		return written, err
	}
	if err := save(r.pca.Image, []visualization.Layer{
		{Name: "pca", Bands: []string{"PC1", "PC2", "PC3"}, Min: -2, Max: 2},
	}); err != nil {
		return written, err
	}

	for _, run := range r.classifierRuns {
		if err := save(r.classified[run.name], []visualization.Layer{
			{Name: "classification_" + run.name, Bands: []string{classify.OutputBand}, Min: 0, Max: 1, Palette: []string{"white", "blue"}},
		}); err != nil {
			return written, err
		}
	}
	return written, nil
}

// writeClassifications stores each classified raster as a scene of the
// "classification" collection under dir
func (r *Runner) writeClassifications(dir string) ([]string, error) {
	store := catalog.New(&fileaccess.FSAccess{}, fileaccess.Location{Bucket: dir})
	nodata := float64(classNoData)

	var written []string
	for _, run := range r.classifierRuns {
		m := catalog.Manifest{
			ID:         "svm_" + run.name,
			Collection: "classification",
			Date:       r.landsatDate,
			Bands:      []catalog.BandFile{{Name: classify.OutputBand, File: "classification.tif", Scale: 1, NoData: &nodata}},
		}
		if err := store.WriteScene(m, r.classified[run.name]); err != nil {
			return written, err
		}
		written = append(written, filepath.Join(dir, m.Collection, m.ID, catalog.ManifestFile))
	}
	return written, nil
}

func hasBands(img *models.Raster, bands []string) bool {
	if img == nil {
		return false
	}
	for _, b := range bands {
		if !img.HasBand(b) {
			return false
		}
	}
	return true
}
