package location

import (
	"strings"

	"github.com/Veraticus/the-proof-must-flow/internal/geo"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// SuspiciousSpeed scores the fraction of activities whose derived speed stays
// within maxSpeed. A missing distance falls back to the great-circle distance
// between the activity endpoints.
func SuspiciousSpeed(entries []model.LocationEntry, maxSpeed float64) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var f findings
	valid, total := 0, 0
	for _, e := range entries {
		if e.Activity == nil {
			continue
		}
		total++

		dist := activityDistance(e.Activity)
		speed := geo.CalcSpeed(dist, e.StartTime, e.EndTime)
		if speed <= maxSpeed {
			valid++
			continue
		}
		f.add("entry %d: suspiciously high speed %.2f m/s (limit %.2f)", e.Index, speed, maxSpeed)
	}

	return f.result(ratio(valid, total), summarizeRatio(valid, total, "activities within speed limit"))
}

func activityDistance(a *model.Activity) float64 {
	if !a.Distance.Empty() {
		d, ok := a.Distance.Float()
		if !ok {
			return 0
		}
		return d
	}
	if a.From != nil && a.To != nil {
		return geo.Distance(*a.From, *a.To)
	}
	return 0
}

// TravelModeConsistency checks that walking and running claims match the
// derived speed. Only entries with both a walk/run label and a distance count;
// a distance that does not parse counts against the score.
func TravelModeConsistency(entries []model.LocationEntry, maxWalk, maxRun float64) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var f findings
	valid, total := 0, 0
	for _, e := range entries {
		if e.Mode == nil {
			continue
		}
		mode := strings.ToLower(e.Mode.Label)
		walking := strings.Contains(mode, "walk")
		running := strings.Contains(mode, "run")
		if !walking && !running {
			continue
		}
		if !e.Mode.Distance.Present() {
			continue
		}
		total++

		dist, ok := e.Mode.Distance.Float()
		if !ok {
			f.add("entry %d: %s distance is not numeric (%s)", e.Index, mode, e.Mode.Distance)
			continue
		}
		speed := geo.CalcSpeed(dist, e.Mode.StartTime, e.Mode.EndTime)

		if (walking && speed <= maxWalk) || (running && speed <= maxRun) {
			valid++
			continue
		}
		if walking {
			f.add("entry %d: walking speed too high (%.2f m/s, limit %.2f)", e.Index, speed, maxWalk)
		} else {
			f.add("entry %d: running speed too high (%.2f m/s, limit %.2f)", e.Index, speed, maxRun)
		}
	}

	return f.result(ratio(valid, total), summarizeRatio(valid, total, "travel modes consistent with speed"))
}
