package workflow

import (
	"surfacewater/pkg/classify"
)

// ClassifierReport summarizes one trained classifier and its validation
type ClassifierReport struct {
	Name              string     `yaml:"name"`
	Bands             []string   `yaml:"bands"`
	SupportVectors    int        `yaml:"supportVectors"`
	ErrorMatrix       [2][2]int  `yaml:"errorMatrix"`
	Accuracy          float64    `yaml:"accuracy"`
	Kappa             float64    `yaml:"kappa"`
	ProducersAccuracy [2]float64 `yaml:"producersAccuracy"`
	ConsumersAccuracy [2]float64 `yaml:"consumersAccuracy"`
}

func newClassifierReport(name string, bands []string, model *classify.Model, em classify.ErrorMatrix) ClassifierReport {
	return ClassifierReport{
		Name:              name,
		Bands:             append([]string(nil), bands...),
		SupportVectors:    len(model.SupportVectors),
		ErrorMatrix:       em.Counts,
		Accuracy:          em.Accuracy(),
		Kappa:             em.Kappa(),
		ProducersAccuracy: em.ProducersAccuracy(),
		ConsumersAccuracy: em.ConsumersAccuracy(),
	}
}

// Report is the outcome of a workflow run
type Report struct {
	SentinelScenes []string `yaml:"sentinelScenes"`
	LandsatScenes  []string `yaml:"landsatScenes"`

	// CloudCover is the flagged share of each Sentinel-2 scene, in percent,
	// before dilation
	CloudCover map[string]float64 `yaml:"cloudCover"`

	WaterSamples  int `yaml:"waterSamples"`
	OtherSamples  int `yaml:"otherSamples"`
	SampledPoints int `yaml:"sampledPoints"`
	Training      int `yaml:"training"`
	Validation    int `yaml:"validation"`

	Eigenvalues []float64          `yaml:"eigenvalues"`
	Classifiers []ClassifierReport `yaml:"classifiers"`

	// Outputs lists every file written
	Outputs []string `yaml:"outputs,omitempty"`
}

// Classifier returns the report of the named classifier
func (r *Report) Classifier(name string) (ClassifierReport, bool) {
	for _, c := range r.Classifiers {
		if c.Name == name {
			return c, true
		}
	}
	return ClassifierReport{}, false
}
