// Package config provides configuration loading and management for surfacewater.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"surfacewater/pkg/fileaccess"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Study area parameters
	StudyArea struct {
		// GeoJSON is the path of the study area polygon file
		GeoJSON string `yaml:"geojson"`

		// CRS is the projected CRS of the polygon and of every raster
		CRS string `yaml:"crs"`
	} `yaml:"studyArea"`

	// Archive locates the scene catalog
	Archive struct {
		// Store is "local" or "s3"
		Store string `yaml:"store"`

		// Root is the archive directory for the local store
		Root string `yaml:"root"`

		Bucket string `yaml:"bucket"`
		Prefix string `yaml:"prefix"`
		Region string `yaml:"region"`
	} `yaml:"archive"`

	// Sentinel-2 scene selection and cloud masking
	Sentinel struct {
		Collection      string  `yaml:"collection"`
		StartDate       string  `yaml:"startDate"`
		EndDate         string  `yaml:"endDate"`
		MaxCloudPercent float64 `yaml:"maxCloudPercent"`

		// ClassBand is the scene classification band
		ClassBand     string  `yaml:"classBand"`
		CloudCodes    []int   `yaml:"cloudCodes"`
		DilationMeter float64 `yaml:"dilationMeters"`

		// Scale is the pixel size of the mosaic grid
		Scale float64 `yaml:"scale"`

		// Resampling is "nearest" or "bilinear"
		Resampling string `yaml:"resampling"`
	} `yaml:"sentinel"`

	// Water mask and sampling parameters
	Water struct {
		GreenBand       string  `yaml:"greenBand"`
		NIRBand         string  `yaml:"nirBand"`
		NDWIThreshold   float64 `yaml:"ndwiThreshold"`
		SamplesPerClass int     `yaml:"samplesPerClass"`
		SampleSeed      uint64  `yaml:"sampleSeed"`
	} `yaml:"water"`

	// Landsat-8 scene selection
	Landsat struct {
		Collection string `yaml:"collection"`
		StartDate  string `yaml:"startDate"`
		EndDate    string `yaml:"endDate"`
		WRSPath    int    `yaml:"wrsPath"`
		WRSRow     int    `yaml:"wrsRow"`

		// SourceBands are renamed to Bands in order
		SourceBands []string `yaml:"sourceBands"`
		Bands       []string `yaml:"bands"`
		Scale       float64  `yaml:"scale"`
		Resampling  string   `yaml:"resampling"`
	} `yaml:"landsat"`

	// PCA parameters
	PCA struct {
		Scale float64 `yaml:"scale"`

		// MissingMean is "fail" or "zero"
		MissingMean string `yaml:"missingMean"`
	} `yaml:"pca"`

	// GLCM texture parameters
	GLCM struct {
		Band        string  `yaml:"band"`
		WindowSize  int     `yaml:"windowSize"`
		Scale       float64 `yaml:"scale"`
		FallbackMin float64 `yaml:"fallbackMin"`
		FallbackMax float64 `yaml:"fallbackMax"`
		FailOnEmpty bool    `yaml:"failOnEmpty"`
		Parallelism int     `yaml:"parallelism"`
	} `yaml:"glcm"`

	// Classifier parameters
	Classifier struct {
		// Kernel is "linear" or "rbf"
		Kernel        string  `yaml:"kernel"`
		Cost          float64 `yaml:"cost"`
		Gamma         float64 `yaml:"gamma"`
		Tolerance     float64 `yaml:"tolerance"`
		MaxPasses     int     `yaml:"maxPasses"`
		MaxIterations int     `yaml:"maxIterations"`
		Seed          uint64  `yaml:"seed"`

		// SplitFraction of points with random < fraction go to training
		SplitFraction float64 `yaml:"splitFraction"`
		SplitSeed     uint64  `yaml:"splitSeed"`

		// NumWorkers bounds the goroutines classifying rasters
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"classifier"`

	// Retry parameters for reductions
	Retry struct {
		Steps    int     `yaml:"steps"`
		Duration string  `yaml:"duration"`
		Factor   float64 `yaml:"factor"`
		Jitter   float64 `yaml:"jitter"`
	} `yaml:"retry"`

	// Output parameters
	Output struct {
		Dir         string `yaml:"dir"`
		Quicklooks  bool   `yaml:"quicklooks"`
		Rasters     bool   `yaml:"rasters"`
		MetricsFile string `yaml:"metricsFile"`
		LogLevel    string `yaml:"logLevel"`
		ConsoleLog  bool   `yaml:"consoleLog"`
		ReportFile  string `yaml:"reportFile"`

		// MaxPixels caps the pixels a single reduction may touch
		MaxPixels int `yaml:"maxPixels"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.StudyArea.GeoJSON = "bbox_waterbody.geojson"
	cfg.StudyArea.CRS = "EPSG:32648"

	cfg.Archive.Store = "local"
	cfg.Archive.Root = "archive"

	cfg.Sentinel.Collection = "COPERNICUS/S2_SR"
	cfg.Sentinel.StartDate = "2020-08-01"
	cfg.Sentinel.EndDate = "2020-08-31"
	cfg.Sentinel.MaxCloudPercent = 15
	cfg.Sentinel.ClassBand = "SCL"
	cfg.Sentinel.CloudCodes = []int{3, 9, 10}
	cfg.Sentinel.DilationMeter = 30
	cfg.Sentinel.Scale = 10
	cfg.Sentinel.Resampling = "nearest"

	cfg.Water.GreenBand = "B3"
	cfg.Water.NIRBand = "B8"
	cfg.Water.NDWIThreshold = 0
	cfg.Water.SamplesPerClass = 800
	cfg.Water.SampleSeed = 42

	cfg.Landsat.Collection = "LANDSAT/LC08/C02/T1_L2"
	cfg.Landsat.StartDate = "2020-08-01"
	cfg.Landsat.EndDate = "2020-08-02"
	cfg.Landsat.WRSPath = 125
	cfg.Landsat.WRSRow = 39
	cfg.Landsat.SourceBands = []string{"SR_B2", "SR_B3", "SR_B4", "SR_B5"}
	cfg.Landsat.Bands = []string{"B2", "B3", "B4", "B8"}
	cfg.Landsat.Scale = 30
	cfg.Landsat.Resampling = "nearest"

	cfg.PCA.Scale = 30
	cfg.PCA.MissingMean = "fail"

	cfg.GLCM.Band = "PC1"
	cfg.GLCM.WindowSize = 3
	cfg.GLCM.Scale = 10
	cfg.GLCM.FallbackMin = -2
	cfg.GLCM.FallbackMax = 2
	cfg.GLCM.FailOnEmpty = false
	cfg.GLCM.Parallelism = 4

	cfg.Classifier.Kernel = "linear"
	cfg.Classifier.Cost = 1
	cfg.Classifier.Gamma = 0
	cfg.Classifier.Tolerance = 1e-3
	cfg.Classifier.MaxPasses = 10
	cfg.Classifier.MaxIterations = 500
	cfg.Classifier.Seed = 42
	cfg.Classifier.SplitFraction = 0.7
	cfg.Classifier.SplitSeed = 42
	cfg.Classifier.NumWorkers = runtime.NumCPU() // Use all available cores by default

	cfg.Retry.Steps = 3
	cfg.Retry.Duration = "200ms"
	cfg.Retry.Factor = 2
	cfg.Retry.Jitter = 0.1

	cfg.Output.Dir = "output"
	cfg.Output.Quicklooks = true
	cfg.Output.Rasters = true
	cfg.Output.MetricsFile = ""
	cfg.Output.LogLevel = "info"
	cfg.Output.ConsoleLog = true
	cfg.Output.ReportFile = "report.yaml"
	cfg.Output.MaxPixels = 100000000

	return cfg
}

// SetArchive points the archive at a local directory or, for an
// s3://bucket/prefix url, at an S3 location
func (c *Config) SetArchive(path string) error {
	if !strings.HasPrefix(path, "s3://") {
		c.Archive.Store = "local"
		c.Archive.Root = path
		return nil
	}
	loc, err := fileaccess.ParseS3URL(path)
	if err != nil {
		return err
	}
	c.Archive.Store = "s3"
	c.Archive.Bucket = loc.Bucket
	c.Archive.Prefix = loc.Prefix
	return nil
}

// Validate checks values that would otherwise fail deep inside the workflow
func (c *Config) Validate() error {
	switch c.Archive.Store {
	case "local":
		if c.Archive.Root == "" {
			return fmt.Errorf("archive.root is required for the local store")
		}
	case "s3":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("archive.store must be local or s3, got %q", c.Archive.Store)
	}
	if c.StudyArea.GeoJSON == "" {
		return fmt.Errorf("studyArea.geojson is required")
	}
	if len(c.Landsat.SourceBands) == 0 || len(c.Landsat.SourceBands) != len(c.Landsat.Bands) {
		return fmt.Errorf("landsat.sourceBands and landsat.bands must be non-empty and of equal length")
	}
	if c.Sentinel.Scale <= 0 || c.Landsat.Scale <= 0 {
		return fmt.Errorf("sentinel.scale and landsat.scale must be positive")
	}
	if c.Water.SamplesPerClass <= 0 {
		return fmt.Errorf("water.samplesPerClass must be positive, got %d", c.Water.SamplesPerClass)
	}
	if c.GLCM.WindowSize < 3 || c.GLCM.WindowSize%2 == 0 {
		return fmt.Errorf("glcm.windowSize must be odd and at least 3, got %d", c.GLCM.WindowSize)
	}
	if c.Classifier.SplitFraction <= 0 || c.Classifier.SplitFraction >= 1 {
		return fmt.Errorf("classifier.splitFraction must be in (0, 1), got %v", c.Classifier.SplitFraction)
	}
	if c.Classifier.Cost <= 0 {
		return fmt.Errorf("classifier.cost must be positive, got %v", c.Classifier.Cost)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
