package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RecordID identifies a preference question. IDs arrive as numbers or
// strings; the raw token is the identity so 7 and "7" stay distinct.
type RecordID struct {
	raw string
}

// NewRecordID builds an ID from a raw JSON token.
func NewRecordID(raw string) RecordID {
	return RecordID{raw: strings.TrimSpace(raw)}
}

// Key returns the identity used for grouping.
func (id RecordID) Key() string {
	return id.raw
}

// Present reports whether the ID was set.
func (id RecordID) Present() bool {
	return id.raw != "" && id.raw != "null"
}

// String returns the ID without JSON quoting.
func (id RecordID) String() string {
	var s string
	if err := json.Unmarshal([]byte(id.raw), &s); err == nil {
		return s
	}
	return id.raw
}

// Choice is the chosen answer. Integers index into the responses; floats are a
// soft preference for the first response.
type Choice struct {
	Raw     string
	Value   float64
	IsFloat bool
	Valid   bool
}

// ParseChoice decodes a raw JSON token into a Choice.
func ParseChoice(raw json.RawMessage) Choice {
	token := strings.TrimSpace(string(raw))
	c := Choice{Raw: token}
	if token == "" || token[0] == '"' || token == "null" || token == "true" || token == "false" {
		return c
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return c
	}
	c.Value = v
	c.Valid = true
	c.IsFloat = strings.ContainsAny(token, ".eE")
	return c
}

// Index resolves the choice to a response index. Soft preferences of at
// least 0.5 pick the first response.
func (c Choice) Index() (int, error) {
	if !c.Valid {
		return 0, fmt.Errorf("chosen value %s is not numeric", c.Raw)
	}
	if c.IsFloat {
		if c.Value >= 0.5 {
			return 0, nil
		}
		return 1, nil
	}
	return int(c.Value), nil
}

// Equal compares choices by numeric value, so 1 and 1.0 agree.
func (c Choice) Equal(other Choice) bool {
	if c.Valid && other.Valid {
		return c.Value == other.Value
	}
	return c.Raw == other.Raw
}

// Key is a grouping key that treats 1 and 1.0 as the same choice.
func (c Choice) Key() string {
	if c.Valid {
		return strconv.FormatFloat(c.Value, 'g', -1, 64)
	}
	return c.Raw
}

// Response is one candidate answer shown to the user.
type Response struct {
	Text  *string
	Model *string
}

// PreferenceRecord is one human judgment between model responses.
type PreferenceRecord struct {
	Prompt         *string
	Chosen         *Choice
	UniqueID       RecordID
	TimeTaken      Number
	Responses      []Response
	ResponsesValid bool
}

// UnmarshalJSON decodes leniently: a malformed field is recorded as missing
// so that only the checks needing it degrade.
func (r *PreferenceRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("preference record is not an object: %w", err)
	}

	*r = PreferenceRecord{}
	if raw, ok := fields["uniqueID"]; ok {
		r.UniqueID = NewRecordID(string(raw))
	}
	if raw, ok := fields["prompt"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			r.Prompt = &s
		}
	}
	if raw, ok := fields["chosen"]; ok {
		c := ParseChoice(raw)
		r.Chosen = &c
	}
	if raw, ok := fields["time_taken"]; ok {
		if err := json.Unmarshal(raw, &r.TimeTaken); err != nil {
			r.TimeTaken = Number{}
		}
	}
	if raw, ok := fields["responses"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			r.ResponsesValid = true
			r.Responses = make([]Response, 0, len(items))
			for _, item := range items {
				r.Responses = append(r.Responses, decodeResponse(item))
			}
		}
	}
	return nil
}

func decodeResponse(raw json.RawMessage) Response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Response{}
	}
	var resp Response
	if v, ok := fields["response"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			resp.Text = &s
		}
	}
	if v, ok := fields["model"]; ok {
		trimmed := bytes.TrimSpace(v)
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			resp.Model = &s
		} else if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			s = string(trimmed)
			resp.Model = &s
		}
	}
	return resp
}
