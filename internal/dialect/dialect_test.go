package dialect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

const primaryPayload = `[
  {
    "startTime": "2024-03-01T08:00:00.000+00:00",
    "endTime": "2024-03-01T08:30:00.000+00:00",
    "activity": {
      "start": "geo:51.500000,-0.120000",
      "end": "geo:51.510000,-0.100000",
      "distanceMeters": "1800.0",
      "probability": "0.93",
      "topCandidate": {"type": "walking", "probability": "0.88"}
    }
  },
  {
    "startTime": "2024-03-01T08:30:00.000+00:00",
    "endTime": "2024-03-01T10:00:00.000+00:00",
    "visit": {
      "hierarchyLevel": "0",
      "probability": "0.7",
      "topCandidate": {"probability": "0.65", "placeID": "abc"}
    }
  },
  {
    "startTime": "2024-03-01T10:00:00.000+00:00",
    "endTime": "2024-03-01T12:00:00.000+00:00",
    "timelinePath": [
      {"point": "geo:51.51,-0.1", "durationMinutesOffsetFromStartTime": "5"},
      {"point": "bogus", "durationMinutesOffsetFromStartTime": "x"}
    ]
  }
]`

const alternatePayload = `{
  "semanticSegments": [
    {
      "startTime": "2024-03-01T08:00:00Z",
      "endTime": "2024-03-01T08:20:00Z",
      "distance": 1500,
      "activities": [{"activityType": "WALKING", "probability": 0.8}, {"activityType": "RUNNING", "probability": 0.1}],
      "activitySegment": {
        "activityType": "WALKING",
        "distance": 1500,
        "startTime": "2024-03-01T08:00:00Z",
        "endTime": "2024-03-01T08:20:00Z",
        "waypointPath": {"waypoints": [{"latE7": 515000000, "lngE7": -1200000}, {"latE7": 999999999, "lngE7": 0}]}
      }
    },
    {
      "startTime": "2024-03-01T08:20:00Z",
      "endTime": "2024-03-01T09:00:00Z",
      "placeVisit": {"location": {"locationConfidence": 0.92}}
    }
  ]
}`

const preferencePayload = `[
  {"prompt": "What is the capital of France?", "uniqueID": 213,
   "responses": [{"response": "Paris.", "model": "GPT-3.5"}, {"response": "It is Paris.", "model": "GPT-4"}],
   "chosen": 1, "time_taken": 11.001}
]`

func TestDetect_Primary(t *testing.T) {
	sub, err := Detect([]byte(primaryPayload))
	require.NoError(t, err)
	assert.Equal(t, KindPrimary, sub.Kind)
	assert.Equal(t, model.DomainLocation, sub.Domain())
	require.Equal(t, 3, sub.Len())

	first := sub.Entries[0]
	require.NotNil(t, first.StartTime)
	require.NotNil(t, first.Activity)
	dist, ok := first.Activity.Distance.Float()
	require.True(t, ok)
	assert.Equal(t, 1800.0, dist)
	require.NotNil(t, first.Activity.From)
	assert.Equal(t, 51.5, first.Activity.From.Latitude)
	assert.Len(t, first.Activity.Probabilities, 2)
	require.NotNil(t, first.Mode)
	assert.Equal(t, "walking", first.Mode.Label)

	second := sub.Entries[1]
	require.NotNil(t, second.Visit)
	require.NotNil(t, second.Visit.Level)
	assert.Equal(t, model.LevelHierarchy, second.Visit.Level.Kind)
	assert.Len(t, second.Probabilities(), 2)

	third := sub.Entries[2]
	assert.True(t, third.HasPath)
	require.Len(t, third.Path, 2)
	assert.True(t, third.Path[0].PointValid())
	assert.True(t, third.Path[0].OffsetValid())
	assert.False(t, third.Path[1].PointValid())
	assert.False(t, third.Path[1].OffsetValid())
}

func TestDetect_PrimaryMalformedPath(t *testing.T) {
	sub, err := Detect([]byte(`[{"startTime": "2024-01-01T00:00:00Z", "timelinePath": {"point": "geo:1,2"}}]`))
	require.NoError(t, err)
	require.Len(t, sub.Entries, 1)
	assert.True(t, sub.Entries[0].HasPath)
	assert.True(t, sub.Entries[0].PathMalformed)
	assert.Empty(t, sub.Entries[0].Path)
}

func TestDetect_Alternate(t *testing.T) {
	sub, err := Detect([]byte(alternatePayload))
	require.NoError(t, err)
	assert.Equal(t, KindAlternate, sub.Kind)
	require.Equal(t, 2, sub.Len())

	first := sub.Entries[0]
	require.NotNil(t, first.Activity)
	assert.Len(t, first.Activity.Probabilities, 2)
	dist, ok := first.Activity.Distance.Float()
	require.True(t, ok)
	assert.Equal(t, 1500.0, dist)

	require.NotNil(t, first.Mode)
	assert.Equal(t, "walking", first.Mode.Label)
	require.NotNil(t, first.Mode.StartTime)

	require.Len(t, first.Path, 2)
	assert.True(t, first.Path[0].PointValid())
	assert.True(t, first.Path[0].OffsetValid(), "untimed waypoint follows coordinate validity")
	assert.InDelta(t, 51.5, first.Path[0].Point.Latitude, 1e-9)
	assert.False(t, first.Path[1].PointValid())
	assert.False(t, first.Path[1].OffsetValid())

	second := sub.Entries[1]
	require.NotNil(t, second.Visit)
	require.NotNil(t, second.Visit.Level)
	assert.Equal(t, model.LevelConfidence, second.Visit.Level.Kind)
}

func TestDetect_Preference(t *testing.T) {
	sub, err := Detect([]byte(preferencePayload))
	require.NoError(t, err)
	assert.Equal(t, KindPreference, sub.Kind)
	assert.Equal(t, model.DomainPreference, sub.Domain())
	require.Len(t, sub.Records, 1)

	rec := sub.Records[0]
	assert.Equal(t, "213", rec.UniqueID.String())
	require.NotNil(t, rec.Chosen)
	idx, err := rec.Chosen.Index()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	require.Len(t, rec.Responses, 2)
	assert.Equal(t, "GPT-4", *rec.Responses[1].Model)
}

func TestDetect_UnknownFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty payload", input: ""},
		{name: "scalar", input: `42`},
		{name: "object without segments", input: `{"foo": []}`},
		{name: "segments not array", input: `{"semanticSegments": {}}`},
		{name: "empty array", input: `[]`},
		{name: "array of scalars", input: `[1, 2, 3]`},
		{name: "invalid json", input: `[{"startTime": }]`},
		{name: "mixed entries", input: `[{"startTime": "2024-01-01T00:00:00Z"}, 5]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownFormat))
		})
	}
}
