package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"surfacewater/internal/logger"
	"surfacewater/pkg/config"
	"surfacewater/pkg/metrics"
	"surfacewater/pkg/workflow"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "surfacewater.yaml", "Path of the YAML configuration file")
	initConfig := flag.Bool("init", false, "Write a default configuration file to -config and exit")
	archive := flag.String("archive", "", "Scene archive directory or s3://bucket/prefix (overrides archive)")
	area := flag.String("area", "", "Study area GeoJSON file (overrides studyArea.geojson)")
	outputDir := flag.String("output", "", "Output directory (overrides output.dir)")
	samples := flag.Int("samples", 0, "Samples per class (overrides water.samplesPerClass)")
	kernel := flag.String("kernel", "", "SVM kernel, linear or rbf (overrides classifier.kernel)")
	workers := flag.Int("workers", 0, "Goroutines classifying rasters (overrides classifier.numWorkers)")
	logLevel := flag.String("log-level", "", "Log level (overrides output.logLevel)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *archive != "" {
		if err := cfg.SetArchive(*archive); err != nil {
			log.Fatalf("Invalid archive location: %v", err)
		}
	}
	if *area != "" {
		cfg.StudyArea.GeoJSON = *area
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *samples > 0 {
		cfg.Water.SamplesPerClass = *samples
	}
	if *kernel != "" {
		cfg.Classifier.Kernel = *kernel
	}
	if *workers > 0 {
		cfg.Classifier.NumWorkers = *workers
	}
	if *logLevel != "" {
		cfg.Output.LogLevel = *logLevel
	}

	level := logger.ParseLevel(cfg.Output.LogLevel)
	logs := logger.New(os.Stderr, level)
	if cfg.Output.ConsoleLog {
		logs = logger.NewConsole(level)
	}

	fmt.Println("================================")
	fmt.Println("SURFACE WATER MAPPING WITH SENTINEL-2 NDWI SAMPLES AND LANDSAT-8 SVM")
	fmt.Println("================================")

	runner, err := workflow.NewRunner(&workflow.Params{
		Config:  cfg,
		Logger:  logs,
		Metrics: metrics.NewRecorder(),
	})
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	report, err := runner.Process(ctx)
	if err != nil {
		log.Fatalf("Workflow failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nWorkflow completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Sentinel-2 scenes: %d, Landsat-8 scenes: %d\n", len(report.SentinelScenes), len(report.LandsatScenes))
	fmt.Printf("Samples: %d water, %d non-water, %d with all features\n",
		report.WaterSamples, report.OtherSamples, report.SampledPoints)
	fmt.Printf("Training: %d, validation: %d\n\n", report.Training, report.Validation)

	for _, c := range report.Classifiers {
		fmt.Printf("Classifier %s (%d bands, %d support vectors)\n", c.Name, len(c.Bands), c.SupportVectors)
		fmt.Printf("=======================================\n")
		fmt.Printf("Confusion matrix (rows actual, columns predicted):\n")
		fmt.Printf("  %6d %6d\n  %6d %6d\n", c.ErrorMatrix[0][0], c.ErrorMatrix[0][1], c.ErrorMatrix[1][0], c.ErrorMatrix[1][1])
		fmt.Printf("Validation accuracy: %.4f\n", c.Accuracy)
		fmt.Printf("Kappa: %.4f\n\n", c.Kappa)
	}

	if len(report.Outputs) > 0 {
		fmt.Printf("Outputs written to %s:\n", cfg.Output.Dir)
		for _, f := range report.Outputs {
			fmt.Printf("- %s\n", f)
		}
	}
}
