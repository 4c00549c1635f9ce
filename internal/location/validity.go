package location

import (
	"fmt"
	"slices"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// Probabilities requires every probability occurrence to parse into [0,1].
func Probabilities(entries []model.LocationEntry) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var f findings
	valid, total := 0, 0
	for _, e := range entries {
		for _, p := range e.Probabilities() {
			total++
			v, ok := p.Value.Float()
			switch {
			case !ok:
				f.add("entry %d: %s probability is not a valid float (%s)", e.Index, p.Source, p.Value)
			case v < 0 || v > 1:
				f.add("entry %d: %s probability out of [0,1] range (%g)", e.Index, p.Source, v)
			default:
				valid++
			}
		}
	}

	return f.result(ratio(valid, total), summarizeRatio(valid, total, "probabilities valid"))
}

// HierarchyLevels validates the visit grading field: hierarchy levels must be
// in allowed, location confidences must lie in [0,1].
func HierarchyLevels(entries []model.LocationEntry, allowed []int) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var f findings
	valid, total := 0, 0
	for _, e := range entries {
		if e.Visit == nil || e.Visit.Level == nil {
			continue
		}
		total++
		level := e.Visit.Level

		switch level.Kind {
		case model.LevelConfidence:
			c, ok := level.Value.Float()
			switch {
			case !ok:
				f.add("entry %d: locationConfidence is not a valid float (%s)", e.Index, level.Value)
			case c < 0 || c > 1:
				f.add("entry %d: locationConfidence out of [0,1] range (%g)", e.Index, c)
			default:
				valid++
			}
		default:
			hl, ok := level.Value.Int()
			switch {
			case !ok:
				f.add("entry %d: hierarchyLevel not an integer (%s)", e.Index, level.Value)
			case !slices.Contains(allowed, hl):
				f.add("entry %d: hierarchyLevel %d not in allowed list %v", e.Index, hl, allowed)
			default:
				valid++
			}
		}
	}

	return f.result(ratio(valid, total), summarizeRatio(valid, total, "visit levels valid"))
}

// TimelinePaths checks every path point on two independent axes: the
// coordinate must decode and the offset must be numeric.
func TimelinePaths(entries []model.LocationEntry) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var f findings
	valid, total := 0, 0
	for _, e := range entries {
		if !e.HasPath {
			continue
		}
		if e.PathMalformed {
			f.add("entry %d: timelinePath is not a list", e.Index)
			continue
		}
		for j, p := range e.Path {
			total += 2
			if p.PointValid() {
				valid++
			} else {
				f.add("entry %d point %d: invalid geo point (%s)", e.Index, j, p.RawPoint)
			}
			if p.OffsetValid() {
				valid++
			} else if p.Timed {
				f.add("entry %d point %d: non-numeric duration offset (%s)", e.Index, j, p.RawOffset)
			}
		}
	}

	return f.result(ratio(valid, total), summarizeRatio(valid, total, "path point checks passed"))
}

func summarize(issues, total int, what string) string {
	if issues == 0 {
		return fmt.Sprintf("No %s issues in %d checks", what, total)
	}
	return fmt.Sprintf("Found %d %s issues in %d checks", issues, what, total)
}

func summarizeRatio(valid, total int, what string) string {
	if total == 0 {
		return "Nothing applicable to check"
	}
	return fmt.Sprintf("%d of %d %s", valid, total, what)
}
