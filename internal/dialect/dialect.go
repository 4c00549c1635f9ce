// Package dialect detects which submission shape a payload uses and
// normalizes it, so checks never branch on field names.
package dialect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// ErrUnknownFormat is returned for payloads matching no supported shape.
var ErrUnknownFormat = errors.New("unknown submission format")

// Kind tags the detected shape.
type Kind string

const (
	// KindPrimary is a bare array of location entries.
	KindPrimary Kind = "primary"
	// KindAlternate is an object holding semanticSegments.
	KindAlternate Kind = "alternate"
	// KindPreference is an array of preference records.
	KindPreference Kind = "preference"
)

// SegmentsField is the key that marks the alternate location dialect.
const SegmentsField = "semanticSegments"

var preferenceKeys = []string{"responses", "chosen", "time_taken", "prompt", "uniqueID"}

// Submission is a payload resolved to exactly one shape.
type Submission struct {
	Raw     json.RawMessage
	Kind    Kind
	Entries []model.LocationEntry
	Records []model.PreferenceRecord
}

// Domain returns the scoring domain for the submission.
func (s Submission) Domain() model.Domain {
	if s.Kind == KindPreference {
		return model.DomainPreference
	}
	return model.DomainLocation
}

// Len is the number of records, used for the input size cap.
func (s Submission) Len() int {
	if s.Kind == KindPreference {
		return len(s.Records)
	}
	return len(s.Entries)
}

// Detect resolves the payload shape once and decodes it.
func Detect(raw []byte) (Submission, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Submission{}, fmt.Errorf("%w: empty payload", ErrUnknownFormat)
	}

	switch trimmed[0] {
	case '{':
		return detectObject(trimmed)
	case '[':
		return detectArray(trimmed)
	default:
		return Submission{}, fmt.Errorf("%w: top level must be an array or an object", ErrUnknownFormat)
	}
}

func detectObject(raw []byte) (Submission, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Submission{}, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}

	segmentsRaw, ok := fields[SegmentsField]
	if !ok {
		return Submission{}, fmt.Errorf("%w: object without %s", ErrUnknownFormat, SegmentsField)
	}

	var segments []json.RawMessage
	if err := json.Unmarshal(segmentsRaw, &segments); err != nil {
		return Submission{}, fmt.Errorf("%w: %s is not an array", ErrUnknownFormat, SegmentsField)
	}

	entries, err := decodeEntries(segments, decodeAlternate)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Raw: raw, Kind: KindAlternate, Entries: entries}, nil
}

func detectArray(raw []byte) (Submission, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return Submission{}, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if len(items) == 0 {
		return Submission{}, fmt.Errorf("%w: empty submission", ErrUnknownFormat)
	}

	first, ok := object(items[0])
	if !ok {
		return Submission{}, fmt.Errorf("%w: element 0 is not an object", ErrUnknownFormat)
	}

	if hasAny(first, preferenceKeys) {
		records := make([]model.PreferenceRecord, 0, len(items))
		for i, item := range items {
			var rec model.PreferenceRecord
			if err := json.Unmarshal(item, &rec); err != nil {
				return Submission{}, fmt.Errorf("%w: record %d: %v", ErrUnknownFormat, i, err)
			}
			records = append(records, rec)
		}
		return Submission{Raw: raw, Kind: KindPreference, Records: records}, nil
	}

	entries, err := decodeEntries(items, decodePrimary)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Raw: raw, Kind: KindPrimary, Entries: entries}, nil
}

type entryDecoder func(index int, fields map[string]json.RawMessage) model.LocationEntry

func decodeEntries(items []json.RawMessage, decode entryDecoder) ([]model.LocationEntry, error) {
	entries := make([]model.LocationEntry, 0, len(items))
	for i, item := range items {
		fields, ok := object(item)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is not an object", ErrUnknownFormat, i)
		}
		entries = append(entries, decode(i, fields))
	}
	return entries, nil
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func str(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func number(raw json.RawMessage) model.Number {
	var n model.Number
	if len(raw) == 0 {
		return n
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return model.Number{}
	}
	return n
}

func hasAny(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}
