package preference

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// workedExample is a six-record log with one repeated question answered the
// same way and a tilt toward the second response.
const workedExample = `[
  {"prompt": "What is the capital of France?", "uniqueID": 213,
   "responses": [{"response": "The capital of France is Paris.", "model": "GPT-3.5"}, {"response": "Paris is the capital city of France.", "model": "GPT-4"}],
   "chosen": 1, "time_taken": 11.001},
  {"prompt": "Who wrote 'Romeo and Juliet'?", "uniqueID": 214,
   "responses": [{"response": "William Shakespeare wrote 'Romeo and Juliet'.", "model": "GPT-3.5"}, {"response": "Shakespeare is the author of 'Romeo and Juliet'.", "model": "BERT"}],
   "chosen": 0, "time_taken": 11.001},
  {"prompt": "What's the largest planet in our solar system?", "uniqueID": 215,
   "responses": [{"response": "Jupiter is the largest planet in our solar system.", "model": "GPT-4"}, {"response": "The largest planet in our solar system is Jupiter.", "model": "GPT-3.5"}],
   "chosen": 0, "time_taken": 11.001},
  {"prompt": "What is the capital of France?", "uniqueID": 213,
   "responses": [{"response": "The capital of France is Paris.", "model": "GPT-3.5"}, {"response": "Paris is the capital city of France.", "model": "GPT-4"}],
   "chosen": 1, "time_taken": 11.001},
  {"prompt": "What's the largest planet in our solar system?", "uniqueID": 216,
   "responses": [{"response": "Jupiter is the largest planet in our solar system.", "model": "GPT-4"}, {"response": "The largest planet in our solar system is Jupiter.", "model": "GPT-3.5"}],
   "chosen": 1, "time_taken": 11.001},
  {"prompt": "What is the capital of France?", "uniqueID": 218,
   "responses": [{"response": "The capital of France is Paris.", "model": "GPT-3.5"}, {"response": "Paris is the capital city of France.", "model": "GPT-4"}],
   "chosen": 1, "time_taken": 11.001}
]`

func decode(t *testing.T, raw string) []model.PreferenceRecord {
	t.Helper()
	var records []model.PreferenceRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &records))
	return records
}

func record(id string, chosen string, seconds float64, prompt string, responses ...string) model.PreferenceRecord {
	r := model.PreferenceRecord{
		UniqueID:       model.NewRecordID(id),
		TimeTaken:      model.NewNumber(seconds),
		Prompt:         &prompt,
		ResponsesValid: true,
	}
	c := model.ParseChoice(json.RawMessage(chosen))
	r.Chosen = &c
	for i := 0; i+1 < len(responses); i += 2 {
		text, name := responses[i], responses[i+1]
		r.Responses = append(r.Responses, model.Response{Text: &text, Model: &name})
	}
	return r
}

type staticReference struct {
	answers map[string]model.Choice
	err     error
}

func (s staticReference) Fetch(context.Context) (map[string]model.Choice, error) {
	return s.answers, s.err
}

func choice(raw string) model.Choice {
	return model.ParseChoice(json.RawMessage(raw))
}

func TestTimeMinimums(t *testing.T) {
	tests := []struct {
		name    string
		records []model.PreferenceRecord
		want    float64
	}{
		{"above floor", []model.PreferenceRecord{record("1", "0", 20, "p"), record("2", "1", 12, "p")}, 1.0},
		{"below floor", []model.PreferenceRecord{record("1", "0", 5, "p"), record("2", "1", 12, "p")}, 0.0},
		{"empty", nil, 0.0},
		{"missing time", []model.PreferenceRecord{{UniqueID: model.NewRecordID("1")}}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeMinimums(tt.records, 15)
			assert.InDelta(t, tt.want, got.Score, 1e-9)
			assert.NotEmpty(t, got.Comments)
		})
	}

	got := TimeMinimums([]model.PreferenceRecord{{UniqueID: model.NewRecordID("1")}}, 15)
	assert.Contains(t, got.Comments[0], "An error occurred")

	nan := record("1", "0", 0, "p")
	nan.TimeTaken = model.NumberFromString("NaN")
	got = TimeMinimums([]model.PreferenceRecord{nan}, 15)
	assert.InDelta(t, 0.0, got.Score, 1e-9)
	assert.Contains(t, got.Comments[0], "is not numeric")
}

func TestCharacterTiming(t *testing.T) {
	// 10 chars of prompt plus 10 of responses need more than 1s at 0.05s/char.
	fast := record("1", "0", 0.5, "0123456789", "01234", "a", "56789", "b")
	slow := record("2", "0", 3, "0123456789", "01234", "a", "56789", "b")

	got := CharacterTiming([]model.PreferenceRecord{fast, slow}, 0.05)
	assert.InDelta(t, 0.5, got.Score, 1e-9)
	assert.Equal(t, []string{"Passed 1 out of 2 character timing checks"}, got.Comments)

	t.Run("counts code points", func(t *testing.T) {
		// Four runes, twelve bytes.
		r := record("3", "0", 0.25, "日本語字")
		assert.InDelta(t, 1.0, CharacterTiming([]model.PreferenceRecord{r}, 0.05).Score, 1e-9)
	})

	t.Run("missing prompt", func(t *testing.T) {
		r := record("4", "0", 3, "x")
		r.Prompt = nil
		assert.InDelta(t, 0.0, CharacterTiming([]model.PreferenceRecord{r}, 0.05).Score, 1e-9)
	})
}

func TestTimeDistribution(t *testing.T) {
	t.Run("positive correlation", func(t *testing.T) {
		records := []model.PreferenceRecord{
			record("1", "0", 2, "ab"),
			record("2", "0", 4, "abcd"),
			record("3", "0", 8, "abcdefgh"),
		}
		got := TimeDistribution(records)
		assert.InDelta(t, 1.0, got.Score, 1e-9)
		assert.Equal(t, "Strong positive correlation", got.Comments[1])
	})

	t.Run("negative correlation", func(t *testing.T) {
		records := []model.PreferenceRecord{
			record("1", "0", 8, "ab"),
			record("2", "0", 4, "abcd"),
			record("3", "0", 2, "abcdefgh"),
		}
		got := TimeDistribution(records)
		assert.InDelta(t, 0.0, got.Score, 1e-9)
		assert.Equal(t, "No positive correlation", got.Comments[1])
	})

	t.Run("no variation", func(t *testing.T) {
		records := []model.PreferenceRecord{record("1", "0", 5, "ab"), record("2", "0", 5, "abcd")}
		got := TimeDistribution(records)
		assert.InDelta(t, 0.0, got.Score, 1e-9)
		assert.Equal(t, []string{"No variation in data points"}, got.Comments)
	})

	t.Run("single point", func(t *testing.T) {
		got := TimeDistribution([]model.PreferenceRecord{record("1", "0", 5, "ab")})
		assert.Equal(t, []string{"Not enough data points to calculate correlation"}, got.Comments)
	})
}

func TestRepeatAnswers(t *testing.T) {
	t.Run("same answer", func(t *testing.T) {
		got := RepeatAnswers([]model.PreferenceRecord{record("7", "1", 1, "p"), record("7", "1.0", 1, "p")})
		assert.InDelta(t, 1.0, got.Score, 1e-9)
	})

	t.Run("conflicting answer", func(t *testing.T) {
		got := RepeatAnswers([]model.PreferenceRecord{record("7", "1", 1, "p"), record("7", "0", 1, "p")})
		assert.InDelta(t, 0.0, got.Score, 1e-9)
		assert.Equal(t, "Duplicate IDs: 7", got.Comments[1])
	})

	t.Run("number and string ids are distinct", func(t *testing.T) {
		got := RepeatAnswers([]model.PreferenceRecord{record("7", "1", 1, "p"), record(`"7"`, "0", 1, "p")})
		assert.InDelta(t, 1.0, got.Score, 1e-9)
	})

	t.Run("missing chosen", func(t *testing.T) {
		r := record("7", "1", 1, "p")
		r.Chosen = nil
		assert.InDelta(t, 0.0, RepeatAnswers([]model.PreferenceRecord{r}).Score, 1e-9)
	})
}

func TestChoiceBalance(t *testing.T) {
	split := []model.PreferenceRecord{
		record("1", "0", 1, "p"), record("2", "1", 1, "p"),
		record("3", "0", 1, "p"), record("4", "1", 1, "p"),
	}
	got := ChoiceBalance(split)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.Equal(t, []string{"Choice distribution analysis:", "Choice 0: 50.00%", "Choice 1: 50.00%", "Distribution is balanced"}, got.Comments)

	dominant := make([]model.PreferenceRecord, 0, 10)
	for i := 0; i < 9; i++ {
		dominant = append(dominant, record("1", "0", 1, "p"))
	}
	dominant = append(dominant, record("2", "1", 1, "p"))
	got = ChoiceBalance(dominant)
	assert.InDelta(t, 0.0, got.Score, 1e-9)
	assert.Equal(t, "Distribution shows strong bias", got.Comments[len(got.Comments)-1])

	tilted := make([]model.PreferenceRecord, 0, 10)
	for i := 0; i < 7; i++ {
		tilted = append(tilted, record("1", "0", 1, "p"))
	}
	for i := 0; i < 3; i++ {
		tilted = append(tilted, record("2", "1", 1, "p"))
	}
	got = ChoiceBalance(tilted)
	assert.InDelta(t, 0.5, got.Score, 1e-9)
	assert.Equal(t, "Distribution shows moderate bias", got.Comments[len(got.Comments)-1])
}

func TestModelBalance(t *testing.T) {
	records := []model.PreferenceRecord{
		record("1", "0", 1, "p", "a", "GPT-4", "b", "BERT"),
		record("2", "1", 1, "p", "a", "GPT-4", "b", "BERT"),
		record("3", "0.7", 1, "p", "a", "GPT-4", "b", "BERT"),
		record("4", "0.2", 1, "p", "a", "GPT-4", "b", "BERT"),
	}
	got := ModelBalance(records)
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.Contains(t, got.Comments, "Model 'GPT-4': 50.00%")

	t.Run("index out of range", func(t *testing.T) {
		bad := record("5", "3", 1, "p", "a", "GPT-4", "b", "BERT")
		got := ModelBalance([]model.PreferenceRecord{bad})
		assert.InDelta(t, 0.0, got.Score, 1e-9)
		assert.Contains(t, got.Comments[0], "out of range")
	})

	t.Run("non numeric choice", func(t *testing.T) {
		bad := record("6", `"first"`, 1, "p", "a", "GPT-4", "b", "BERT")
		assert.InDelta(t, 0.0, ModelBalance([]model.PreferenceRecord{bad}).Score, 1e-9)
	})
}

func TestPoisonConsistency(t *testing.T) {
	ctx := context.Background()
	records := []model.PreferenceRecord{record("213", "1", 1, "p"), record("999", "0", 1, "p")}

	tests := []struct {
		name string
		ref  ReferenceSource
		want float64
		msg  string
	}{
		{"consistent", staticReference{answers: map[string]model.Choice{"213": choice("1")}}, 1.0, "All poisoned data choices are consistent"},
		{"inconsistent", staticReference{answers: map[string]model.Choice{"213": choice("0")}}, 0.0, "Found 1 inconsistencies with poisoned data"},
		{"fetch failure", staticReference{err: errors.New("timeout")}, 0.0, "Failed to retrieve poisoned data: timeout"},
		{"empty reference", staticReference{answers: map[string]model.Choice{}}, 0.0, "Failed to retrieve poisoned data: reference is empty"},
		{"no source", nil, 0.0, "Failed to retrieve poisoned data: no reference source configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PoisonConsistency(ctx, records, tt.ref)
			assert.InDelta(t, tt.want, got.Score, 1e-9)
			assert.Equal(t, tt.msg, got.Comments[0])
		})
	}
}

func TestWorkedExample(t *testing.T) {
	records := decode(t, workedExample)
	require.Len(t, records, 6)
	ref := staticReference{answers: map[string]model.Choice{"213": choice("1")}}

	results := make(map[string]model.CheckResult)
	for _, c := range Checks(DefaultConfig(), ref) {
		results[c.Name] = c.Run(context.Background(), records)
	}

	assert.InDelta(t, 0.0, results[NameTimeMinimums].Score, 1e-9)
	assert.InDelta(t, 1.0, results[NameTimeCorrelation].Score, 1e-9)
	assert.InDelta(t, 0.0, results[NameTimeDistribution].Score, 1e-9)
	assert.InDelta(t, 1.0, results[NameRepeatAnswers].Score, 1e-9)
	assert.InDelta(t, (0.9-4.0/6.0)/0.4, results[NameBothSides].Score, 1e-9)
	assert.InDelta(t, (0.9-4.0/6.0)/0.4, results[NameModelDistribution].Score, 1e-9)
	assert.InDelta(t, 1.0, results[NamePoisonData].Score, 1e-9)
}
