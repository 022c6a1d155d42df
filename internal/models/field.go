package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is a loosely typed request value. Listing forms arrive either as
// multipart strings or as JSON, so numbers and booleans are kept raw and
// coerced on demand. Set distinguishes an absent key from an explicit null.
type Field struct {
	Set    bool
	Null   bool
	Quoted bool
	Raw    string
}

// FormField wraps a multipart or query value.
func FormField(v string) Field {
	return Field{Set: true, Quoted: true, Raw: v}
}

func (f *Field) UnmarshalJSON(b []byte) error {
	*f = Field{Set: true}
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		return fmt.Errorf("empty value")
	case bytes.Equal(b, []byte("null")):
		f.Null = true
	case b[0] == '"':
		f.Quoted = true
		return json.Unmarshal(b, &f.Raw)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("unsupported value %s", b)
	default:
		f.Raw = string(b)
	}
	return nil
}

// Present reports a non-null value.
func (f Field) Present() bool {
	return f.Set && !f.Null
}

// Blank is true for absent, null and whitespace-only values.
func (f Field) Blank() bool {
	return !f.Present() || strings.TrimSpace(f.Raw) == ""
}

func (f Field) String() string {
	return f.Raw
}

func (f Field) Float() (float64, bool) {
	if f.Blank() {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.Raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (f Field) Int() (int, bool) {
	v, ok := f.Float()
	if !ok || v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

// Uint parses a positive integer id.
func (f Field) Uint() (uint, bool) {
	v, ok := f.Int()
	if !ok || v < 1 {
		return 0, false
	}
	return uint(v), true
}

func (f Field) Bool() (bool, bool) {
	if f.Blank() {
		return false, false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(f.Raw))
	if err != nil {
		return false, false
	}
	return v, true
}

// StringPtr returns nil for null or blank values.
func (f Field) StringPtr() *string {
	if f.Blank() {
		return nil
	}
	s := f.Raw
	return &s
}
