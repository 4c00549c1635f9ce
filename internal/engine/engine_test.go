package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/config"
	"github.com/Veraticus/the-proof-must-flow/internal/location"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
	"github.com/Veraticus/the-proof-must-flow/internal/preference"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockReference struct {
	mock.Mock
}

func (m *mockReference) Fetch(ctx context.Context) (map[string]model.Choice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	answers, _ := args.Get(0).(map[string]model.Choice)
	return answers, args.Error(1)
}

func plantedReference(t *testing.T) *mockReference {
	t.Helper()
	ref := &mockReference{}
	ref.On("Fetch", mock.Anything).Return(map[string]model.Choice{
		"213": model.ParseChoice(json.RawMessage("1")),
	}, nil)
	return ref
}

func newTestEngine(t *testing.T, ref preference.ReferenceSource) *Engine {
	t.Helper()
	e, err := New(Deps{Reference: ref}, config.Default())
	require.NoError(t, err)
	return e
}

const wellFormedTrace = `[
  {"startTime": "2024-03-01T08:00:00Z", "endTime": "2024-03-01T08:30:00Z",
   "activity": {"distanceMeters": "1800", "probability": "0.95",
                "start": "geo:51.5,-0.12", "end": "geo:51.51,-0.1",
                "topCandidate": {"type": "walking", "probability": "0.9"}}},
  {"startTime": "2024-03-01T09:00:00Z", "endTime": "2024-03-01T10:00:00Z",
   "visit": {"hierarchyLevel": "0", "probability": "0.8"}},
  {"startTime": "2024-03-16T12:00:00Z", "endTime": "2024-03-31T08:00:00Z",
   "visit": {"hierarchyLevel": 1, "probability": "0.7"}}
]`

const sixRecords = `[
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

func TestNew_RequiresReference(t *testing.T) {
	_, err := New(Deps{}, config.Default())
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Location.Weights[location.NameTimeOrder] = 0.9
	_, err := New(Deps{Reference: &mockReference{}}, cfg)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestEvaluate_LocationPasses(t *testing.T) {
	e := newTestEngine(t, &mockReference{})

	eval := e.EvaluateRaw(context.Background(), []byte(wellFormedTrace))
	require.NotNil(t, eval.Report)
	require.True(t, eval.Outcome.IsEvaluated(), eval.Outcome.Reason)

	assert.Equal(t, model.DomainLocation, eval.Report.Domain)
	assert.Equal(t, location.Names, eval.Report.Order)
	for _, name := range location.Names {
		res, ok := eval.Report.Result(name)
		require.True(t, ok, name)
		assert.InDelta(t, 1.0, res.Score, 1e-9, name)
	}
	// Thirty days out of a sixty day window.
	assert.InDelta(t, 0.5, eval.Outcome.Score, 1e-9)
	assert.NotEmpty(t, eval.Report.ID)
}

func TestEvaluate_StartAfterEndIsFlagged(t *testing.T) {
	e := newTestEngine(t, &mockReference{})
	trace := `[{"startTime": "2024-03-02T10:00:00Z", "endTime": "2024-03-01T10:00:00Z"}]`

	eval := e.EvaluateRaw(context.Background(), []byte(trace))
	require.NotNil(t, eval.Report)

	order, _ := eval.Report.Result(location.NameTimeOrder)
	assert.Less(t, order.Score, 1.0)
	assert.Contains(t, order.Comments[1], "endTime is before startTime")

	assert.Equal(t, model.OutcomePolicyReject, eval.Outcome.Kind)
	assert.InDelta(t, model.LegacyRejectScore, eval.Outcome.Legacy(), 1e-9)
}

func TestEvaluate_AlternateThreshold(t *testing.T) {
	trace := `{"semanticSegments": [
	  {"startTime": "2024-03-01T08:00:00Z", "endTime": "2024-03-01T09:00:00Z",
	   "placeVisit": {"location": {"locationConfidence": 1.7}}},
	  {"startTime": "2024-03-01T09:30:00Z", "endTime": "2024-03-20T09:00:00Z",
	   "placeVisit": {"location": {"locationConfidence": 0.9}}}
	]}`

	// One of two confidences is out of range: composite is 1 - 0.5/7.
	cfg := config.Default()
	cfg.Location.PassThreshold = 0.95
	strict, err := New(Deps{Reference: &mockReference{}}, cfg)
	require.NoError(t, err)
	eval := strict.EvaluateRaw(context.Background(), []byte(trace))
	require.NotNil(t, eval.Report)
	assert.InDelta(t, 1-0.5/7, eval.Report.Score, 1e-9)
	assert.Equal(t, model.OutcomePolicyReject, eval.Outcome.Kind)

	cfg = config.Default()
	cfg.Location.PassThreshold = 0.95
	cfg.Location.AlternatePassThreshold = 0.9
	lenient, err := New(Deps{Reference: &mockReference{}}, cfg)
	require.NoError(t, err)
	eval = lenient.EvaluateRaw(context.Background(), []byte(trace))
	assert.True(t, eval.Outcome.IsEvaluated())
	assert.Equal(t, "alternate", eval.Report.Dialect)
}

func TestEvaluate_PreferenceWorkedExample(t *testing.T) {
	ref := plantedReference(t)
	e := newTestEngine(t, ref)

	eval := e.EvaluateRaw(context.Background(), []byte(sixRecords))
	require.True(t, eval.Outcome.IsEvaluated())

	// Both sides and model balance share a 4 of 6 split; time minimums and
	// time distribution score 0, the rest score 1.
	balance := (0.9 - 4.0/6.0) / 0.4
	want := 0.2 + 0.15 + 0.15*balance + 0.05*balance + 0.15
	assert.InDelta(t, want, eval.Outcome.Score, 1e-9)
	assert.Greater(t, eval.Outcome.Score, 0.0)
	assert.Less(t, eval.Outcome.Score, 1.0)
	assert.Equal(t, preference.Names, eval.Report.Order)
	ref.AssertExpectations(t)
}

func TestEvaluate_ReferenceFailureFailsClosed(t *testing.T) {
	ref := &mockReference{}
	ref.On("Fetch", mock.Anything).Return(nil, errors.New("connection reset"))
	e := newTestEngine(t, ref)

	eval := e.EvaluateRaw(context.Background(), []byte(sixRecords))
	poison, ok := eval.Report.Result(preference.NamePoisonData)
	require.True(t, ok)
	assert.InDelta(t, 0.0, poison.Score, 1e-9)
	assert.Contains(t, poison.Comments[0], "connection reset")
}

func TestEvaluateRaw_FormatErrors(t *testing.T) {
	e := newTestEngine(t, &mockReference{})

	for _, raw := range []string{``, `[]`, `42`, `{"foo": 1}`, `[{"startTime": }]`} {
		eval := e.EvaluateRaw(context.Background(), []byte(raw))
		assert.Nil(t, eval.Report, raw)
		assert.Equal(t, model.OutcomeFormatError, eval.Outcome.Kind, raw)
		assert.InDelta(t, -1.0, eval.Outcome.Legacy(), 1e-9, raw)
	}
}

func TestRunChecks_RecoversPanics(t *testing.T) {
	tasks := []task{
		{name: "fine", run: func(context.Context) model.CheckResult { return model.CheckResult{Score: 1} }},
		{name: "boom", run: func(context.Context) model.CheckResult { panic("index out of range") }},
	}

	results := runChecks(context.Background(), tasks)
	assert.InDelta(t, 1.0, results["fine"].Score, 1e-9)
	assert.InDelta(t, 0.0, results["boom"].Score, 1e-9)
	assert.Contains(t, results["boom"].Comments[0], "index out of range")
}
