package resolvers

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The directory API does not guarantee field types. These scalars accept any
// JSON value and fall back to their zero value instead of failing the decode.

// String accepts JSON strings and numbers. Anything else decodes to "".
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	*s = ""
	switch v := decodeAny(data).(type) {
	case string:
		*s = String(v)
	case json.Number:
		*s = String(v.String())
	}
	return nil
}

// Bool accepts JSON booleans, numbers (non-zero is true) and strings
// understood by strconv.ParseBool.
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	*b = false
	switch v := decodeAny(data).(type) {
	case bool:
		*b = Bool(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			*b = f != 0
		}
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*b = Bool(parsed)
		}
	}
	return nil
}

// Int accepts integral JSON numbers and numeric strings. Valid is false when
// the field was absent or could not be read as an integer.
type Int struct {
	Value int
	Valid bool
}

func (i *Int) UnmarshalJSON(data []byte) error {
	*i = Int{}
	var text string
	switch v := decodeAny(data).(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil
	}
	if n, err := strconv.Atoi(text); err == nil {
		*i = Int{Value: n, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= math.MaxInt32 {
		*i = Int{Value: int(f), Valid: true}
	}
	return nil
}

// Float accepts JSON numbers and numeric strings. NaN, infinities and
// unparseable values decode to 0.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	*f = 0
	var text string
	switch v := decodeAny(data).(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil
	}
	*f = Float(parsed)
	return nil
}

func decodeAny(data []byte) any {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
