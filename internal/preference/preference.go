// Package preference implements the integrity checks for preference-comparison
// logs. A structural problem in the records degrades the owning check to 0.0
// with a diagnostic comment; nothing is returned as an error.
package preference

import (
	"context"
	"errors"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// Check names in report order.
const (
	NameTimeMinimums      = "time_minimums"
	NameTimeCorrelation   = "time_correlation"
	NameTimeDistribution  = "time_distribution"
	NameRepeatAnswers     = "repeat_answers"
	NameBothSides         = "both_sides"
	NameModelDistribution = "model_distribution"
	NamePoisonData        = "poison_data"
)

// Names lists the checks in report order.
var Names = []string{
	NameTimeMinimums,
	NameTimeCorrelation,
	NameTimeDistribution,
	NameRepeatAnswers,
	NameBothSides,
	NameModelDistribution,
	NamePoisonData,
}

// errNoRecords is reported by every check when given an empty log.
var errNoRecords = errors.New("no records to evaluate")

// ReferenceSource supplies the planted answers, keyed by record ID.
type ReferenceSource interface {
	Fetch(ctx context.Context) (map[string]model.Choice, error)
}

// Config holds the timing floors.
type Config struct {
	// MinAverageTime is the floor for mean time_taken, in seconds.
	MinAverageTime float64
	// MinCharTime is the minimum plausible reading time per character, in seconds.
	MinCharTime float64
}

// DefaultConfig returns the default floors.
func DefaultConfig() Config {
	return Config{
		MinAverageTime: 15,
		MinCharTime:    0.05,
	}
}

// Check is one named preference check.
type Check struct {
	Run  func(ctx context.Context, records []model.PreferenceRecord) model.CheckResult
	Name string
}

// Checks returns the registry in report order. ref may be nil, in which case
// the poison check fails closed.
func Checks(cfg Config, ref ReferenceSource) []Check {
	return []Check{
		{Name: NameTimeMinimums, Run: func(_ context.Context, r []model.PreferenceRecord) model.CheckResult {
			return TimeMinimums(r, cfg.MinAverageTime)
		}},
		{Name: NameTimeCorrelation, Run: func(_ context.Context, r []model.PreferenceRecord) model.CheckResult {
			return CharacterTiming(r, cfg.MinCharTime)
		}},
		{Name: NameTimeDistribution, Run: func(_ context.Context, r []model.PreferenceRecord) model.CheckResult {
			return TimeDistribution(r)
		}},
		{Name: NameRepeatAnswers, Run: func(_ context.Context, r []model.PreferenceRecord) model.CheckResult {
			return RepeatAnswers(r)
		}},
		{Name: NameBothSides, Run: func(_ context.Context, r []model.PreferenceRecord) model.CheckResult {
			return ChoiceBalance(r)
		}},
		{Name: NameModelDistribution, Run: func(_ context.Context, r []model.PreferenceRecord) model.CheckResult {
			return ModelBalance(r)
		}},
		{Name: NamePoisonData, Run: func(ctx context.Context, r []model.PreferenceRecord) model.CheckResult {
			return PoisonConsistency(ctx, r, ref)
		}},
	}
}

func failed(what string, err error) model.CheckResult {
	return model.CheckResult{
		Score:    0.0,
		Comments: []string{"An error occurred while " + what + ": " + err.Error()},
	}
}
