// Package allocation is the boundary to the external allocation model. The
// model itself lives elsewhere and no Predictor implementation ships with
// this module; callers supply their own. This package validates the model
// inputs and turns its raw per-bucket weights into a percentage breakdown.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	AdvancingHealth = "Advancing Health"
	DiseaseSupport  = "Disease Support"
	MedicalResearch = "Medical Research"
	FinancialAid    = "Financial Aid"
	EmergencyFunds  = "Emergency Funds"
	Mitigation      = "Mitigation"
	Preparedness    = "Preparedness"
	Response        = "Response"
	Recovery        = "Recovery"
)

// CategoryMedical selects the medical buckets; every other category gets the
// disaster buckets.
const CategoryMedical = "medical"

var (
	medicalBuckets  = []string{AdvancingHealth, DiseaseSupport, MedicalResearch, FinancialAid, EmergencyFunds}
	disasterBuckets = []string{Mitigation, Preparedness, Response, Recovery, EmergencyFunds}
)

// Features are the model inputs.
type Features struct {
	Amount   float64
	Urgency  int
	Category string
}

func (f Features) Validate() error {
	var errs []error
	if math.IsNaN(f.Amount) || math.IsInf(f.Amount, 0) || f.Amount < 0 {
		errs = append(errs, fmt.Errorf("amount must be a non-negative number, got %v", f.Amount))
	}
	if f.Urgency < 1 || f.Urgency > 10 {
		errs = append(errs, fmt.Errorf("urgency must be between 1 and 10, got %d", f.Urgency))
	}
	if strings.TrimSpace(f.Category) == "" {
		errs = append(errs, errors.New("category is required"))
	}
	return errors.Join(errs...)
}

// Predictor returns raw, unnormalised weights keyed by bucket name.
type Predictor interface {
	Predict(ctx context.Context, f Features) (map[string]float64, error)
}

// Share is one bucket's percentage.
type Share struct {
	Bucket  string
	Percent float64
}

// Allocation lists bucket shares in a fixed order.
type Allocation []Share

func (a Allocation) Total() float64 {
	var total float64
	for _, s := range a {
		total += s.Percent
	}
	return total
}

// Buckets returns the bucket names relevant to category.
func Buckets(category string) []string {
	src := disasterBuckets
	if strings.EqualFold(strings.TrimSpace(category), CategoryMedical) {
		src = medicalBuckets
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Normalize keeps the buckets relevant to category, clamps negative and
// non-finite weights to zero and scales the rest to percentages rounded to one decimal place. When
// nothing is left after clamping every share is zero.
func Normalize(raw map[string]float64, category string) Allocation {
	buckets := Buckets(category)
	weights := make([]float64, len(buckets))
	var total float64
	for i, b := range buckets {
		w := raw[b]
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			w = 0
		}
		weights[i] = w
		total += w
	}

	out := make(Allocation, len(buckets))
	for i, b := range buckets {
		out[i] = Share{Bucket: b}
		if total > 0 {
			out[i].Percent = math.Round(weights[i]/total*1000) / 10
		}
	}
	return out
}

// Allocate validates f, asks p for raw weights and normalises them.
func Allocate(ctx context.Context, p Predictor, f Features) (Allocation, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid features: %w", err)
	}
	raw, err := p.Predict(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to predict allocation: %w", err)
	}
	return Normalize(raw, f.Category), nil
}
