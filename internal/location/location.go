// Package location implements the plausibility checks for location-history
// traces. Every check is a pure function over normalized entries.
package location

import (
	"fmt"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// Check names, stable across dialects.
const (
	NameTimeOrder        = "time_order"
	NameSuspiciousSpeed  = "suspicious_speed"
	NameProbabilities    = "probabilities"
	NameHierarchyLevels  = "hierarchy_levels"
	NameTimelinePaths    = "timeline_paths"
	NameRegularIntervals = "regular_intervals"
	NameTravelMode       = "travel_mode"
)

// Names lists the checks in report order.
var Names = []string{
	NameTimeOrder,
	NameSuspiciousSpeed,
	NameProbabilities,
	NameHierarchyLevels,
	NameTimelinePaths,
	NameRegularIntervals,
	NameTravelMode,
}

// maxFindings caps per-entry comments so a large trace keeps a readable report.
const maxFindings = 25

// Config holds the physical limits the checks enforce.
type Config struct {
	AllowedLevels []int
	MaxSpeed      float64
	MaxWalkSpeed  float64
	MaxRunSpeed   float64
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxSpeed:      44.44,
		AllowedLevels: []int{0, 1, 2},
		MaxWalkSpeed:  1.4,
		MaxRunSpeed:   3.5,
	}
}

// Check is one named location check.
type Check struct {
	Run  func(entries []model.LocationEntry) model.CheckResult
	Name string
}

// Checks returns the registry in report order.
func Checks(cfg Config) []Check {
	return []Check{
		{Name: NameTimeOrder, Run: TimeOrder},
		{Name: NameSuspiciousSpeed, Run: func(e []model.LocationEntry) model.CheckResult { return SuspiciousSpeed(e, cfg.MaxSpeed) }},
		{Name: NameProbabilities, Run: Probabilities},
		{Name: NameHierarchyLevels, Run: func(e []model.LocationEntry) model.CheckResult { return HierarchyLevels(e, cfg.AllowedLevels) }},
		{Name: NameTimelinePaths, Run: TimelinePaths},
		{Name: NameRegularIntervals, Run: RegularIntervals},
		{Name: NameTravelMode, Run: func(e []model.LocationEntry) model.CheckResult {
			return TravelModeConsistency(e, cfg.MaxWalkSpeed, cfg.MaxRunSpeed)
		}},
	}
}

// findings accumulates per-entry comments up to maxFindings.
type findings struct {
	comments []string
	dropped  int
}

func (f *findings) add(format string, args ...any) {
	if len(f.comments) >= maxFindings {
		f.dropped++
		return
	}
	f.comments = append(f.comments, fmt.Sprintf(format, args...))
}

func (f *findings) result(score float64, summary string) model.CheckResult {
	comments := make([]string, 0, len(f.comments)+2)
	comments = append(comments, summary)
	comments = append(comments, f.comments...)
	if f.dropped > 0 {
		comments = append(comments, fmt.Sprintf("... and %d more", f.dropped))
	}
	return model.CheckResult{Score: score, Comments: comments}
}

func ratio(valid, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(valid) / float64(total)
}

func perfect(msg string) model.CheckResult {
	return model.CheckResult{Score: 1.0, Comments: []string{msg}}
}
