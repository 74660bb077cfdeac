// pkg/qc/extractor.go
package qc

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/medsendx/data-gateway/pkg/model"
)

// ErrInsufficientData is returned when a record has no pixel data or
// when fewer vectors than clusters are available.
var ErrInsufficientData = errors.New("insufficient data")

// Extractor computes fixed-size feature vectors from record pixel
// grids. The three features are cheap to compute, interpretable by
// clinicians and sensitive to scanner faults: a drifting X-ray tube
// shifts the mean, a deteriorating detector flattens the contrast.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Extractor{logger: logger}, nil
}

// Extract computes (mean, population std dev, max) over the flattened
// pixel grid. Deterministic, no side effects.
func (e *Extractor) Extract(rec *model.Record) (model.FeatureVector, error) {
	if rec == nil {
		return model.FeatureVector{}, errors.New("record cannot be nil")
	}

	pixels := make([]float64, 0, rec.PixelCount())
	for _, row := range rec.Pixels {
		pixels = append(pixels, row...)
	}

	if len(pixels) == 0 {
		return model.FeatureVector{}, fmt.Errorf("record %s has an empty pixel grid: %w", rec.ID, ErrInsufficientData)
	}

	vec := model.FeatureVector{
		RecordID:   rec.ID,
		AvgDensity: stat.Mean(pixels, nil),
		Contrast:   stat.PopStdDev(pixels, nil),
		PeakValue:  floats.Max(pixels),
	}

	e.logger.Debug("Extracted features",
		zap.String("recordID", rec.ID),
		zap.Float64("avgDensity", vec.AvgDensity),
		zap.Float64("contrast", vec.Contrast),
		zap.Float64("peakValue", vec.PeakValue))

	return vec, nil
}

// ExtractAll extracts features from every record, skipping records that
// cannot be processed. One unreadable scan must not stop the QC stage.
func (e *Extractor) ExtractAll(records []model.Record) []model.FeatureVector {
	vectors := make([]model.FeatureVector, 0, len(records))
	for i := range records {
		vec, err := e.Extract(&records[i])
		if err != nil {
			e.logger.Warn("Skipping record in feature extraction",
				zap.String("recordID", records[i].ID),
				zap.Error(err))
			continue
		}
		vectors = append(vectors, vec)
	}
	return vectors
}
