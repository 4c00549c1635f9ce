package preference

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// RepeatAnswers fails the log if any question ID was answered two different ways.
func RepeatAnswers(records []model.PreferenceRecord) model.CheckResult {
	if len(records) == 0 {
		return failed("checking for duplicate IDs", errNoRecords)
	}

	seen := make(map[string]model.Choice, len(records))
	var conflicts []string
	for i, r := range records {
		if !r.UniqueID.Present() {
			return failed("checking for duplicate IDs", fmt.Errorf("record %d: missing uniqueID", i))
		}
		if r.Chosen == nil {
			return failed("checking for duplicate IDs", fmt.Errorf("record %d: missing chosen", i))
		}
		prev, ok := seen[r.UniqueID.Key()]
		if !ok {
			seen[r.UniqueID.Key()] = *r.Chosen
			continue
		}
		if !prev.Equal(*r.Chosen) {
			conflicts = append(conflicts, r.UniqueID.String())
		}
	}

	if len(conflicts) > 0 {
		return model.CheckResult{
			Score: 0.0,
			Comments: []string{
				fmt.Sprintf("Found %d duplicate IDs with conflicting choices", len(conflicts)),
				"Duplicate IDs: " + strings.Join(conflicts, ", "),
			},
		}
	}
	return model.CheckResult{Score: 1.0, Comments: []string{"No duplicate IDs with conflicting choices found"}}
}

// ChoiceBalance scores how evenly the chosen values are spread.
func ChoiceBalance(records []model.PreferenceRecord) model.CheckResult {
	if len(records) == 0 {
		return failed("analyzing choice distribution", errNoRecords)
	}

	var dist distribution
	for i, r := range records {
		if r.Chosen == nil {
			return failed("analyzing choice distribution", fmt.Errorf("record %d: missing chosen", i))
		}
		dist.add(r.Chosen.Key(), r.Chosen.Raw)
	}

	score := dist.balance()
	comments := []string{"Choice distribution analysis:"}
	comments = append(comments, dist.lines("Choice %s: %.2f%%")...)
	comments = append(comments, biasComment("Distribution", "is balanced", score))
	return model.CheckResult{Score: score, Comments: comments}
}

// ModelBalance resolves each choice to the model that produced it and scores
// how evenly the chosen models are spread.
func ModelBalance(records []model.PreferenceRecord) model.CheckResult {
	if len(records) == 0 {
		return failed("analyzing model bias", errNoRecords)
	}

	var dist distribution
	for i, r := range records {
		name, err := chosenModel(i, r)
		if err != nil {
			return failed("analyzing model bias", err)
		}
		dist.add(name, name)
	}

	score := dist.balance()
	comments := []string{"Model selection distribution:"}
	comments = append(comments, dist.lines("Model '%s': %.2f%%")...)
	comments = append(comments, biasComment("Model selection", "is balanced", score))
	return model.CheckResult{Score: score, Comments: comments}
}

func chosenModel(i int, r model.PreferenceRecord) (string, error) {
	if r.Chosen == nil {
		return "", fmt.Errorf("record %d: missing chosen", i)
	}
	idx, err := r.Chosen.Index()
	if err != nil {
		return "", fmt.Errorf("record %d: %w", i, err)
	}
	if !r.ResponsesValid {
		return "", fmt.Errorf("record %d: missing responses", i)
	}
	if idx < 0 || idx >= len(r.Responses) {
		return "", fmt.Errorf("record %d: chosen index %d out of range for %d responses", i, idx, len(r.Responses))
	}
	m := r.Responses[idx].Model
	if m == nil {
		return "", fmt.Errorf("record %d: response %d has no model", i, idx)
	}
	return *m, nil
}

// PoisonConsistency compares answers against the planted reference. Any
// disagreement, or a reference that cannot be fetched, scores 0.
func PoisonConsistency(ctx context.Context, records []model.PreferenceRecord, ref ReferenceSource) model.CheckResult {
	if len(records) == 0 {
		return failed("checking poison consistency", errNoRecords)
	}
	if ref == nil {
		return model.CheckResult{Score: 0.0, Comments: []string{"Failed to retrieve poisoned data: no reference source configured"}}
	}

	planted, err := ref.Fetch(ctx)
	if err != nil {
		return model.CheckResult{Score: 0.0, Comments: []string{"Failed to retrieve poisoned data: " + err.Error()}}
	}
	if len(planted) == 0 {
		return model.CheckResult{Score: 0.0, Comments: []string{"Failed to retrieve poisoned data: reference is empty"}}
	}

	var inconsistent []string
	for i, r := range records {
		if !r.UniqueID.Present() {
			return failed("checking poison consistency", fmt.Errorf("record %d: missing uniqueID", i))
		}
		want, ok := planted[r.UniqueID.Key()]
		if !ok {
			continue
		}
		if r.Chosen == nil || !r.Chosen.Equal(want) {
			inconsistent = append(inconsistent, r.UniqueID.String())
		}
	}

	if len(inconsistent) > 0 {
		return model.CheckResult{
			Score: 0.0,
			Comments: []string{
				fmt.Sprintf("Found %d inconsistencies with poisoned data", len(inconsistent)),
				"Inconsistent IDs: " + strings.Join(inconsistent, ", "),
			},
		}
	}
	return model.CheckResult{Score: 1.0, Comments: []string{"All poisoned data choices are consistent"}}
}

// distribution counts values in first-seen order.
type distribution struct {
	counts map[string]int
	labels map[string]string
	order  []string
	total  int
}

func (d *distribution) add(key, label string) {
	if d.counts == nil {
		d.counts = make(map[string]int)
		d.labels = make(map[string]string)
	}
	if _, ok := d.counts[key]; !ok {
		d.order = append(d.order, key)
		d.labels[key] = label
	}
	d.counts[key]++
	d.total++
}

func (d *distribution) maxProportion() float64 {
	best := 0
	for _, c := range d.counts {
		best = max(best, c)
	}
	return float64(best) / float64(d.total)
}

// Shares of the dominant value at which balance is perfect and at which it is
// lost. The ramp runs between the two so an even split scores exactly 1.0; a
// steeper 2*(0.9-p) ramp would cap a 50/50 log at 0.8. A 70% share scores 0.5.
const (
	balancedShare = 0.5
	dominantShare = 0.9
)

// balance ramps linearly from 1 at an even split to 0 at the dominant share.
func (d *distribution) balance() float64 {
	score := (dominantShare - d.maxProportion()) / (dominantShare - balancedShare)
	return math.Max(0, math.Min(1, score))
}

func (d *distribution) lines(format string) []string {
	out := make([]string, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, fmt.Sprintf(format, d.labels[k], float64(d.counts[k])/float64(d.total)*100))
	}
	return out
}

func biasComment(subject, balanced string, score float64) string {
	switch {
	case score > 0.8:
		return subject + " " + balanced
	case score > 0.3:
		return subject + " shows moderate bias"
	default:
		return subject + " shows strong bias"
	}
}
