// Package validation interprets declarative per-route schemas. A schema is a
// plain value built once at startup; Validate is a pure function of the
// payload and the schema.
package validation

import (
	"regexp"
)

type Kind int

const (
	String Kind = iota
	Number
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Format names a well-known string shape checked by the validator library.
type Format string

const (
	FormatNone  Format = ""
	FormatEmail Format = "email"
	FormatAlnum Format = "alphanum"
)

// Field is the constraint set for one named input.
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// String bounds (in runes). Trim strips surrounding whitespace before
	// any check and the trimmed value is what gets accepted.
	MinLen int
	MaxLen int
	Trim   bool

	// Number bounds. Positive excludes zero.
	Min      *float64
	Max      *float64
	Positive bool

	Pattern *regexp.Regexp
	Format  Format
	OneOf   []string

	// Array constraints. Items describes each element; MaxItems of zero
	// falls back to DefaultMaxItems.
	Items    *Field
	MaxItems int

	// Object constraints, used for Object fields and object array items.
	Schema *Schema
}

// DefaultMaxItems bounds every array that does not set its own limit.
const DefaultMaxItems = 50

// Schema maps field names to constraints. Strict schemas reject fields they
// do not declare.
type Schema struct {
	Fields []Field
	Strict bool
}

func Float(v float64) *float64 { return &v }

// Values is a validated payload. Only declared, present fields appear, with
// strings as string, numbers as float64, arrays as []any
// and objects as Values.
type Values map[string]any

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// List returns an array of validated objects.
func (v Values) List(name string) []Values {
	raw, _ := v[name].([]any)
	out := make([]Values, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(Values); ok {
			out = append(out, obj)
		}
	}
	return out
}
