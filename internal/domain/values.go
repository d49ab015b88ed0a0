package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ID is an identifier the backend sends either as a number or a string.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		*id = ID(data)
	}
	return nil
}

// Int returns the numeric form of the id.
func (id ID) Int() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(id)))
	return n, err == nil
}

// Number is a numeric field that may arrive as a JSON number or a numeric
// string. Non-numeric strings are kept but read as NaN.
type Number struct {
	v     float64
	raw   string
	set   bool
	valid bool
}

// NewNumber returns a valid Number.
func NewNumber(f float64) Number {
	return Number{v: f, set: true, valid: !math.IsNaN(f)}
}

// Set reports whether the field was present and non-null.
func (n Number) Set() bool { return n.set }

// Valid reports whether the field holds a number.
func (n Number) Valid() bool { return n.valid }

// Float returns the value, or NaN when the field is absent or non-numeric.
func (n Number) Float() float64 {
	if !n.valid {
		return math.NaN()
	}
	return n.v
}

// Or returns the value, or def when the field is absent or non-numeric.
func (n Number) Or(def float64) float64 {
	if !n.valid {
		return def
	}
	return n.v
}

// Int truncates the value; absent and non-numeric read as 0.
func (n Number) Int() int {
	return int(n.Or(0))
}

func (n Number) MarshalJSON() ([]byte, error) {
	switch {
	case !n.set:
		return []byte("null"), nil
	case n.valid:
		return json.Marshal(n.v)
	default:
		return json.Marshal(n.raw)
	}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = Number{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = parseNumber(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = Number{raw: string(data), set: true}
		return nil
	}
	*n = NewNumber(f)
	return nil
}

// parseNumber mirrors numeric coercion of a string: blank is 0, anything
// else must parse fully.
func parseNumber(s string) Number {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Number{raw: s, set: true, valid: true}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Number{raw: s, set: true}
	}
	return Number{v: f, raw: s, set: true, valid: true}
}

// Strings accepts a single string or a list of strings.
type Strings []string

// First returns the first non-empty entry.
func (s Strings) First() string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Strings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = nil
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if v == "" {
			*s = nil
			return nil
		}
		*s = Strings{v}
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
	}
	return nil
}
