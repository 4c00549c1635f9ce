package location

import (
	"time"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// TimeOrder flags entries ending before they start and backward jumps between
// adjacent entries. Score is 1 - issues/(2N-1).
func TimeOrder(entries []model.LocationEntry) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var f findings
	issues := 0
	totalChecks := 2*len(entries) - 1

	for i, e := range entries {
		if e.StartTime != nil && e.EndTime != nil && e.EndTime.Before(*e.StartTime) {
			issues++
			f.add("entry %d: endTime is before startTime (start %s, end %s)", e.Index, e.RawStart, e.RawEnd)
		}
		if i < len(entries)-1 {
			next := entries[i+1]
			if e.EndTime != nil && next.StartTime != nil && next.StartTime.Before(*e.EndTime) {
				issues++
				f.add("entry %d: overlap or backward jump in time (end %s, next start %s)", e.Index, e.RawEnd, next.RawStart)
			}
		}
	}

	score := 1.0 - float64(issues)/float64(totalChecks)
	return f.result(score, summarize(issues, totalChecks, "time ordering"))
}

// RegularIntervals measures how varied the gaps between entries are. Synthetic
// traces tend to repeat the same gap; score is distinct gaps over all gaps.
func RegularIntervals(entries []model.LocationEntry) model.CheckResult {
	if len(entries) == 0 {
		return perfect("No entries to check")
	}

	var intervals []float64
	for i := 0; i < len(entries)-1; i++ {
		end := entries[i].EndTime
		nextStart := entries[i+1].StartTime
		if end != nil && nextStart != nil {
			intervals = append(intervals, nextStart.Sub(*end).Seconds())
		}
	}
	if len(intervals) == 0 {
		return perfect("No measurable intervals between entries")
	}

	counts := make(map[float64]int, len(intervals))
	var mostCommon float64
	best := 0
	for _, v := range intervals {
		counts[v]++
		if counts[v] > best {
			best = counts[v]
			mostCommon = v
		}
	}

	var f findings
	if float64(best) > float64(len(intervals))/2 {
		f.add("More than half of intervals are identical: %.0fs occurs %d of %d times", mostCommon, best, len(intervals))
	}

	score := float64(len(counts)) / float64(len(intervals))
	return f.result(score, summarizeRatio(len(counts), len(intervals), "distinct intervals"))
}

// TimeSpanDays returns the days between the earliest start and latest end.
func TimeSpanDays(entries []model.LocationEntry) float64 {
	var earliest, latest *time.Time
	for _, e := range entries {
		if e.StartTime != nil && (earliest == nil || e.StartTime.Before(*earliest)) {
			earliest = e.StartTime
		}
		if e.EndTime != nil && (latest == nil || e.EndTime.After(*latest)) {
			latest = e.EndTime
		}
	}
	if earliest == nil || latest == nil {
		return 0
	}
	return latest.Sub(*earliest).Hours() / 24.0
}

// TimeSpanScore divides the span by the saturation window and clamps to [0,1].
func TimeSpanScore(entries []model.LocationEntry, windowDays float64) float64 {
	if len(entries) == 0 || windowDays <= 0 {
		return 0
	}
	score := TimeSpanDays(entries) / windowDays
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
