// Package workflow runs the surface water mapping pipeline: Sentinel-2 water
// mask, stratified sampling, Landsat-8 PCA and GLCM texture, and two SVM
// classifiers compared on a held-out validation set.
package workflow

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"

	"surfacewater/internal/logger"
	"surfacewater/internal/models"
	"surfacewater/pkg/apperr"
	"surfacewater/pkg/catalog"
	"surfacewater/pkg/classify"
	"surfacewater/pkg/cloudmask"
	"surfacewater/pkg/composite"
	"surfacewater/pkg/config"
	"surfacewater/pkg/engine"
	"surfacewater/pkg/fileaccess"
	"surfacewater/pkg/geo"
	"surfacewater/pkg/glcm"
	"surfacewater/pkg/metrics"
	"surfacewater/pkg/pca"
	"surfacewater/pkg/resample"
	"surfacewater/pkg/sampling"
	"surfacewater/pkg/spectral"
)

const component = "workflow"

// Band names produced along the way
const (
	NDWIBand      = "NDWI"
	WaterMaskBand = "water_mask"
)

// Params holds the runner dependencies. Only Config is required; the others
// are built from it when nil.
type Params struct {
	Config *config.Config

	// Store holds the scene archive
	Store fileaccess.FileAccess

	// Region overrides the study area file
	Region *geo.Region

	Engine  engine.Engine
	Logger  *logger.Logger
	Metrics *metrics.Recorder
}

// Runner executes the workflow once. Intermediate products are kept on the
// runner so outputs can be written after the last stage.
type Runner struct {
	params  *Params
	cfg     *config.Config
	log     *logger.Logger
	eng     engine.Engine
	metrics *metrics.Recorder
	catalog *catalog.Catalog

	region         *geo.Region
	sentinel       *models.Raster
	ndwi           *models.Raster
	waterMask      *models.Raster
	samples        models.SampleSet
	landsat        *models.Raster
	landsatDate    string
	pca            *pca.Result
	texture        *models.Raster
	extended       *models.Raster
	training       models.SampleSet
	validation     models.SampleSet
	classified     map[string]*models.Raster
	classifierRuns []classifierRun

	report Report
}

type classifierRun struct {
	name  string
	bands []string
}

// NewRunner validates the configuration and wires default collaborators
func NewRunner(params *Params) (*Runner, error) {
	if params == nil || params.Config == nil {
		return nil, apperr.InvalidInput("workflow", "missing configuration")
	}
	cfg := params.Config
	if err := cfg.Validate(); err != nil {
		return nil, apperr.InvalidInput("workflow", "%v", err)
	}

	r := &Runner{
		params:     params,
		cfg:        cfg,
		log:        params.Logger,
		eng:        params.Engine,
		metrics:    params.Metrics,
		classified: map[string]*models.Raster{},
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	if r.metrics == nil {
		r.metrics = metrics.NewRecorder()
	}
	if r.eng == nil {
		policy, err := retryPolicy(cfg)
		if err != nil {
			return nil, err
		}
		local := engine.NewLocalEngine()
		if cfg.Output.MaxPixels > 0 {
			local.MaxPixels = cfg.Output.MaxPixels
		}
		r.eng = engine.WithRetry(local, policy)
	}

	store, root, err := archiveStore(params.Store, cfg)
	if err != nil {
		return nil, err
	}
	r.catalog = catalog.New(store, root)

	bands := append([]string(nil), cfg.Landsat.Bands...)
	texture := glcm.TextureBands(cfg.GLCM.Band)
	r.classifierRuns = []classifierRun{
		{name: "bands", bands: bands},
		{name: "bands_glcm", bands: append(append([]string(nil), bands...), texture...)},
	}
	return r, nil
}

func retryPolicy(cfg *config.Config) (engine.RetryPolicy, error) {
	policy := engine.DefaultRetryPolicy()
	if cfg.Retry.Duration != "" {
		d, err := time.ParseDuration(cfg.Retry.Duration)
		if err != nil {
			return policy, apperr.InvalidInput("workflow", "bad retry duration %q", cfg.Retry.Duration)
		}
		policy.Duration = d
	}
	if cfg.Retry.Steps > 0 {
		policy.Steps = cfg.Retry.Steps
	}
	if cfg.Retry.Factor > 0 {
		policy.Factor = cfg.Retry.Factor
	}
	policy.Jitter = cfg.Retry.Jitter
	return policy, nil
}

func archiveStore(store fileaccess.FileAccess, cfg *config.Config) (fileaccess.FileAccess, fileaccess.Location, error) {
	if cfg.Archive.Store == "s3" {
		root := fileaccess.Location{Bucket: cfg.Archive.Bucket, Prefix: cfg.Archive.Prefix}
		if store != nil {
			return store, root, nil
		}
		s3Access, err := fileaccess.NewS3Access(cfg.Archive.Region)
		if err != nil {
			return nil, root, errors.Wrap(err, "creating S3 client")
		}
		return s3Access, root, nil
	}
	if store == nil {
		store = &fileaccess.FSAccess{}
	}
	return store, fileaccess.Location{Bucket: cfg.Archive.Root}, nil
}

// stage runs one numbered step with logging and timing. Failures are logged
// with the stage name and returned wrapped.
func (r *Runner) stage(ctx context.Context, number int, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// steps run sequentially; everything a step logs carries its number
	base := r.log
	r.log = base.Stage(number, name)
	defer func() { r.log = base }()
	r.log.Info(component, "starting stage", nil)

	start := time.Now()
	err := fn(ctx)
	r.metrics.ObserveStage(name, start)
	if err != nil {
		r.log.Error(component, err, nil)
		return errors.Wrapf(err, "step %d (%s)", number, name)
	}
	r.log.Done(component, "stage finished", start, nil)
	return nil
}

// Process runs the complete workflow
func (r *Runner) Process(ctx context.Context) (*Report, error) {
	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"study_area", r.loadStudyArea},
		{"sentinel_mosaic", r.buildSentinelMosaic},
		{"water_mask", r.buildWaterMask},
		{"sampling", r.drawSamples},
		{"landsat", r.buildLandsatImage},
		{"pca", r.computePCA},
		{"glcm", r.computeTexture},
		{"extended_samples", r.sampleExtended},
		{"split", r.splitSamples},
		{"classification", r.classify},
		{"outputs", r.writeOutputs},
	}

	for i, s := range steps {
		if err := r.stage(ctx, i+1, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	r.log.Info(component, "workflow finished", map[string]interface{}{
		"samples":    len(r.samples),
		"training":   len(r.training),
		"validation": len(r.validation),
	})
	return &r.report, nil
}

// Step 1
func (r *Runner) loadStudyArea(ctx context.Context) error {
	if r.params.Region != nil {
		r.region = r.params.Region
		return nil
	}
	data, err := os.ReadFile(r.cfg.StudyArea.GeoJSON)
	if err != nil {
		return errors.Wrap(err, "reading study area")
	}
	region, err := geo.FromGeoJSON(data, r.cfg.StudyArea.CRS)
	if err != nil {
		return apperr.InvalidInput("studyArea", "%v", err)
	}
	r.region = region
	return nil
}

// Step 2: cloud-masked, clipped Sentinel-2 mosaic
func (r *Runner) buildSentinelMosaic(ctx context.Context) error {
	s := r.cfg.Sentinel
	col, err := r.catalog.Collection(s.Collection)
	if err != nil {
		return err
	}
	dates, err := catalog.FilterDate(s.StartDate, s.EndDate)
	if err != nil {
		return err
	}
	selected := col.Filter(
		catalog.FilterBounds(r.region),
		dates,
		catalog.PropertyLessThan(catalog.CloudyPixelPercentage, s.MaxCloudPercent),
	)
	r.metrics.SetScenes(s.Collection, selected.Size())
	if selected.Size() == 0 {
		return apperr.InvalidInput("sentinel", "no Sentinel-2 images found for the specified time range and cloud filter")
	}

	scenes, err := selected.Load()
	if err != nil {
		return err
	}
	opts := cloudmask.Options{Codes: s.CloudCodes, RadiusMeters: s.DilationMeter}
	manifests := selected.Scenes()
	r.report.CloudCover = make(map[string]float64, len(scenes))
	for i, scene := range scenes {
		id := manifests[i].ID
		cover := cloudmask.CoveragePercent(scene, s.ClassBand, opts)
		masked := cloudmask.MaskClouds(scene, s.ClassBand, opts)
		removed := countValid(scene) - countValid(masked)
		r.metrics.AddMaskedPixels(removed)
		r.report.CloudCover[id] = cover
		r.log.Info(component, "cloud mask applied", map[string]interface{}{
			"scene":        id,
			"cloudPercent": cover,
			"masked":       removed,
		})
		scenes[i] = masked
	}
	if scenes, err = r.onGrid(scenes, s.Scale, s.Resampling); err != nil {
		return err
	}
	for _, m := range manifests {
		r.report.SentinelScenes = append(r.report.SentinelScenes, m.ID)
	}

	mosaic, err := composite.Mosaic(scenes)
	if err != nil {
		return apperr.InvalidInput("sentinel", "%v", err)
	}
	r.sentinel = mosaic
	r.log.Info(component, "sentinel mosaic ready", map[string]interface{}{
		"scenes": selected.Size(),
		"bands":  mosaic.BandNames(),
		"valid":  countValid(mosaic),
	})
	return nil
}

// Step 3
func (r *Runner) buildWaterMask(ctx context.Context) error {
	w := r.cfg.Water
	ndwi, err := spectral.NDWI(r.sentinel, w.GreenBand, w.NIRBand)
	if err != nil {
		return apperr.InvalidInput("ndwi", "%v", err)
	}
	mask, err := spectral.Threshold(ndwi, NDWIBand, w.NDWIThreshold, WaterMaskBand)
	if err != nil {
		return err
	}
	r.ndwi, r.waterMask = ndwi, mask
	return nil
}

// Step 4
func (r *Runner) drawSamples(ctx context.Context) error {
	w := r.cfg.Water
	samples, err := sampling.Stratified(r.waterMask, WaterMaskBand, r.region, w.SamplesPerClass, w.SampleSeed)
	if err != nil {
		return err
	}
	r.samples = samples
	r.report.WaterSamples = samples.CountClass(1)
	r.report.OtherSamples = samples.CountClass(0)
	r.metrics.SetSamples("drawn", len(samples))
	if r.report.WaterSamples < w.SamplesPerClass || r.report.OtherSamples < w.SamplesPerClass {
		r.log.Warning(component, "fewer candidate pixels than requested samples", map[string]interface{}{
			"water": r.report.WaterSamples,
			"other": r.report.OtherSamples,
		})
	}
	return nil
}

// Step 5: Landsat-8 mosaic with renamed bands; values attached to samples
func (r *Runner) buildLandsatImage(ctx context.Context) error {
	l := r.cfg.Landsat
	col, err := r.catalog.Collection(l.Collection)
	if err != nil {
		return err
	}
	dates, err := catalog.FilterDate(l.StartDate, l.EndDate)
	if err != nil {
		return err
	}
	selected := col.Filter(
		catalog.FilterBounds(r.region),
		dates,
		catalog.PropertyEquals(catalog.WRSPath, float64(l.WRSPath)),
		catalog.PropertyEquals(catalog.WRSRow, float64(l.WRSRow)),
	)
	r.metrics.SetScenes(l.Collection, selected.Size())
	if selected.Size() == 0 {
		return apperr.InvalidInput("landsat", "no Landsat-8 images found for the specified date and region")
	}

	scenes, err := selected.Load(l.SourceBands...)
	if err != nil {
		return err
	}
	for i, scene := range scenes {
		if scenes[i], err = scene.Rename(l.Bands...); err != nil {
			return err
		}
	}
	if scenes, err = r.onGrid(scenes, l.Scale, l.Resampling); err != nil {
		return err
	}
	for _, m := range selected.Scenes() {
		r.report.LandsatScenes = append(r.report.LandsatScenes, m.ID)
	}
	r.landsatDate = selected.Scenes()[0].Date

	mosaic, err := composite.Mosaic(scenes)
	if err != nil {
		return apperr.InvalidInput("landsat", "%v", err)
	}
	r.landsat = mosaic
	r.samples = sampling.Attach(r.samples, mosaic, l.Bands)
	return nil
}

// Step 6
func (r *Runner) computePCA(ctx context.Context) error {
	policy, err := pca.ParseMissingMeanPolicy(r.cfg.PCA.MissingMean)
	if err != nil {
		return apperr.InvalidInput("pca", "%v", err)
	}
	res, err := pca.Compute(ctx, r.eng, r.landsat, r.region, r.cfg.PCA.Scale, r.cfg.Landsat.Bands, pca.Options{MissingMean: policy})
	if err != nil {
		return err
	}
	r.pca = res
	r.report.Eigenvalues = append([]float64(nil), res.Eigen.Values...)
	return nil
}

// Step 7: texture failures are logged here and passed on
func (r *Runner) computeTexture(ctx context.Context) error {
	g := r.cfg.GLCM
	opts := glcm.Options{
		Band:        g.Band,
		WindowSize:  g.WindowSize,
		Scale:       g.Scale,
		FallbackMin: g.FallbackMin,
		FallbackMax: g.FallbackMax,
		FailOnEmpty: g.FailOnEmpty,
		Parallelism: g.Parallelism,
	}
	results, err := glcm.ComputeGLCM(ctx, r.eng, []string{r.landsatDate}, []*models.Raster{r.pca.Image}, r.region, opts)
	if err != nil {
		r.log.Error("glcm", err, map[string]interface{}{"date": r.landsatDate})
		return err
	}
	combined, err := results[0].Combined()
	if err != nil {
		return err
	}
	r.texture = combined.Unmask(0)
	return nil
}

// Step 8
func (r *Runner) sampleExtended(ctx context.Context) error {
	extended, err := r.landsat.AddBands(r.texture)
	if err != nil {
		return err
	}
	r.extended = extended
	bands := r.classifierRuns[len(r.classifierRuns)-1].bands
	r.samples = sampling.SampleRegions(r.samples, extended, bands)
	r.report.SampledPoints = len(r.samples)
	return nil
}

// Step 9
func (r *Runner) splitSamples(ctx context.Context) error {
	c := r.cfg.Classifier
	r.training, r.validation = sampling.RandomSplit(r.samples, c.SplitSeed, c.SplitFraction)
	r.report.Training = len(r.training)
	r.report.Validation = len(r.validation)
	r.metrics.SetSamples("training", len(r.training))
	r.metrics.SetSamples("validation", len(r.validation))
	return nil
}

// Step 10: one classifier per band set, assessed on the validation set
func (r *Runner) classify(ctx context.Context) error {
	c := r.cfg.Classifier
	kernel, err := classify.ParseKernel(c.Kernel)
	if err != nil {
		return apperr.InvalidInput("classifier", "%v", err)
	}
	params := classify.Params{
		Kernel:        kernel,
		C:             c.Cost,
		Gamma:         c.Gamma,
		Tolerance:     c.Tolerance,
		MaxPasses:     c.MaxPasses,
		MaxIterations: c.MaxIterations,
		Seed:          c.Seed,
	}

	for _, run := range r.classifierRuns {
		model, err := classify.Train(r.training, run.bands, params)
		if err != nil {
			return errors.Wrapf(err, "training %s classifier", run.name)
		}
		img, err := model.Classify(ctx, r.extended, c.NumWorkers)
		if err != nil {
			return errors.Wrapf(err, "classifying with %s", run.name)
		}
		em, err := classify.Assess(model, r.validation)
		if err != nil {
			return err
		}

		r.classified[run.name] = img
		r.metrics.SetAccuracy(run.name, em.Accuracy())
		r.report.Classifiers = append(r.report.Classifiers, newClassifierReport(run.name, run.bands, model, em))
		r.log.Info(component, "classifier assessed", map[string]interface{}{
			"classifier": run.name,
			"matrix":     em.Counts,
			"accuracy":   em.Accuracy(),
			"kappa":      em.Kappa(),
		})
	}
	return nil
}

// onGrid resamples scenes onto one grid of the given pixel size covering
// their union within the study area bound, then clips them to the study area
func (r *Runner) onGrid(scenes []*models.Raster, scale float64, method string) ([]*models.Raster, error) {
	m, err := resample.ParseMethod(method)
	if err != nil {
		return nil, apperr.InvalidInput("resample", "%v", err)
	}
	minX, minY, maxX, maxY := resample.Union(scenes)
	b := r.region.Bound()
	grid, err := resample.SnapGrid(r.region.CRS,
		math.Max(minX, b.Min[0]), math.Max(minY, b.Min[1]),
		math.Min(maxX, b.Max[0]), math.Min(maxY, b.Max[1]), scale)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Raster, len(scenes))
	for i, scene := range scenes {
		moved, err := resample.Reproject(scene, grid, m)
		if err != nil {
			return nil, err
		}
		out[i] = moved.Clip(r.region)
	}
	return out, nil
}

func countValid(img *models.Raster) int {
	n := 0
	for _, ok := range img.Mask() {
		if ok {
			n++
		}
	}
	return n
}
