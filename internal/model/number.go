package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a JSON scalar that should carry a number. Exports write numbers
// both bare and quoted, so the raw token is kept and parsed on demand.
type Number struct {
	raw     json.RawMessage
	present bool
}

// NewNumber wraps a float as a present Number.
func NewNumber(v float64) Number {
	return Number{raw: json.RawMessage(strconv.FormatFloat(v, 'g', -1, 64)), present: true}
}

// NumberFromString wraps a quoted string token, as exports commonly emit.
func NumberFromString(s string) Number {
	b, _ := json.Marshal(s)
	return Number{raw: b, present: true}
}

// UnmarshalJSON keeps the raw token. A JSON null is treated as absent.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*n = Number{}
		return nil
	}
	n.raw = append(json.RawMessage(nil), trimmed...)
	n.present = true
	return nil
}

// MarshalJSON writes the original token back.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.present {
		return []byte("null"), nil
	}
	return n.raw, nil
}

// Present reports whether the field appeared with a non-null value.
func (n Number) Present() bool {
	return n.present
}

// Empty reports whether the value is absent, an empty string, or a bare zero.
// Stated distances that are empty fall back to coordinate-derived ones.
func (n Number) Empty() bool {
	if !n.present {
		return true
	}
	if s, ok := n.stringValue(); ok {
		return strings.TrimSpace(s) == ""
	}
	f, ok := n.Float()
	return ok && f == 0
}

// Float parses the value. Non-numeric strings, booleans, containers and
// non-finite values such as "NaN" or "Inf" are invalid.
func (n Number) Float() (float64, bool) {
	if !n.present {
		return 0, false
	}
	text := string(n.raw)
	if s, ok := n.stringValue(); ok {
		text = strings.TrimSpace(s)
	}
	return parseFinite(text)
}

// Int parses the value as an integer. Bare JSON numbers are truncated; strings
// must hold an integer literal.
func (n Number) Int() (int, bool) {
	if !n.present {
		return 0, false
	}
	if s, ok := n.stringValue(); ok {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	f, ok := parseFinite(string(n.raw))
	if !ok {
		return 0, false
	}
	return int(f), true
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String returns the raw token for use in findings.
func (n Number) String() string {
	if !n.present {
		return "<missing>"
	}
	if s, ok := n.stringValue(); ok {
		return s
	}
	return string(n.raw)
}

func (n Number) stringValue() (string, bool) {
	if len(n.raw) == 0 || n.raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(n.raw, &s); err != nil {
		return "", false
	}
	return s, true
}
