package preference

import (
	"fmt"
	"math"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// TimeMinimums requires the mean time_taken to reach minAverage seconds.
func TimeMinimums(records []model.PreferenceRecord, minAverage float64) model.CheckResult {
	times, err := timesTaken(records)
	if err != nil {
		return failed("processing the average minimum time", err)
	}

	average := stat.Mean(times, nil)
	detail := fmt.Sprintf("Average time to answer is %.2f and the minimum is %g", average, minAverage)
	if average < minAverage {
		return model.CheckResult{
			Score:    0.0,
			Comments: []string{"The total average time is less than the defined minimum average time", detail},
		}
	}
	return model.CheckResult{Score: 1.0, Comments: []string{"Test passed", detail}}
}

// CharacterTiming scores the fraction of records answered slower than the
// minimum reading time for their prompt and responses.
func CharacterTiming(records []model.PreferenceRecord, minCharTime float64) model.CheckResult {
	lengths, times, err := lengthsAndTimes(records)
	if err != nil {
		return failed("processing character timing", err)
	}

	passed := 0
	for i := range lengths {
		if lengths[i]*minCharTime < times[i] {
			passed++
		}
	}
	return model.CheckResult{
		Score:    float64(passed) / float64(len(records)),
		Comments: []string{fmt.Sprintf("Passed %d out of %d character timing checks", passed, len(records))},
	}
}

// TimeDistribution scores the Pearson correlation between text length and
// time taken. Negative or undefined correlation scores 0.
func TimeDistribution(records []model.PreferenceRecord) model.CheckResult {
	lengths, times, err := lengthsAndTimes(records)
	if err != nil {
		return failed("processing time distribution", err)
	}
	if len(lengths) < 2 {
		return model.CheckResult{Score: 0.0, Comments: []string{"Not enough data points to calculate correlation"}}
	}

	correlation := stat.Correlation(lengths, times, nil)
	if math.IsNaN(correlation) || math.IsInf(correlation, 0) {
		return model.CheckResult{Score: 0.0, Comments: []string{"No variation in data points"}}
	}

	var strength string
	switch {
	case correlation > 0.7:
		strength = "Strong positive correlation"
	case correlation > 0.3:
		strength = "Moderate positive correlation"
	case correlation > 0:
		strength = "Weak positive correlation"
	default:
		strength = "No positive correlation"
	}

	return model.CheckResult{
		Score:    math.Max(0, correlation),
		Comments: []string{fmt.Sprintf("Correlation coefficient: %.3f", correlation), strength},
	}
}

func timesTaken(records []model.PreferenceRecord) ([]float64, error) {
	if len(records) == 0 {
		return nil, errNoRecords
	}
	times := make([]float64, len(records))
	for i, r := range records {
		t, err := timeTaken(i, r)
		if err != nil {
			return nil, err
		}
		times[i] = t
	}
	return times, nil
}

func timeTaken(i int, r model.PreferenceRecord) (float64, error) {
	if !r.TimeTaken.Present() {
		return 0, fmt.Errorf("record %d: missing time_taken", i)
	}
	t, ok := r.TimeTaken.Float()
	if !ok {
		return 0, fmt.Errorf("record %d: time_taken %s is not numeric", i, r.TimeTaken)
	}
	return t, nil
}

// lengthsAndTimes returns the character count of prompt plus responses and
// the time taken for every record.
func lengthsAndTimes(records []model.PreferenceRecord) ([]float64, []float64, error) {
	if len(records) == 0 {
		return nil, nil, errNoRecords
	}
	lengths := make([]float64, len(records))
	times := make([]float64, len(records))
	for i, r := range records {
		n, err := charLength(i, r)
		if err != nil {
			return nil, nil, err
		}
		t, err := timeTaken(i, r)
		if err != nil {
			return nil, nil, err
		}
		lengths[i] = float64(n)
		times[i] = t
	}
	return lengths, times, nil
}

func charLength(i int, r model.PreferenceRecord) (int, error) {
	if r.Prompt == nil {
		return 0, fmt.Errorf("record %d: missing prompt", i)
	}
	if !r.ResponsesValid {
		return 0, fmt.Errorf("record %d: missing responses", i)
	}
	n := utf8.RuneCountInString(*r.Prompt)
	for j, resp := range r.Responses {
		if resp.Text == nil {
			return 0, fmt.Errorf("record %d: response %d has no text", i, j)
		}
		n += utf8.RuneCountInString(*resp.Text)
	}
	return n, nil
}
