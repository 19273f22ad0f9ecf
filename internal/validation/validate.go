package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"beershop/pkg/customerrors"

	"github.com/go-playground/validator/v10"
)

var formats = validator.New()

// Validate checks payload against schema and returns the accepted values or
// a *customerrors.AppError of kind validation listing every failed field.
func Validate(payload map[string]any, schema Schema) (Values, error) {
	var errs []customerrors.FieldError
	values := validateObject("", payload, schema, &errs)
	if len(errs) > 0 {
		return nil, customerrors.Validation("Validation error", errs...)
	}
	return values, nil
}

// ValidateStrings validates string inputs such as path and query parameters.
// Numeric fields are parsed from their textual form.
func ValidateStrings(params map[string]string, schema Schema) (Values, error) {
	payload := make(map[string]any, len(params))
	for k, v := range params {
		payload[k] = v
	}
	var errs []customerrors.FieldError
	values := validateObject("", coerceNumbers(payload, schema), schema, &errs)
	if len(errs) > 0 {
		return nil, customerrors.Validation("Validation error", errs...)
	}
	return values, nil
}

func coerceNumbers(payload map[string]any, schema Schema) map[string]any {
	for _, f := range schema.Fields {
		if f.Kind != Number {
			continue
		}
		if s, ok := payload[f.Name].(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				payload[f.Name] = n
			}
		}
	}
	return payload
}

func validateObject(prefix string, payload map[string]any, schema Schema, errs *[]customerrors.FieldError) Values {
	values := Values{}
	declared := make(map[string]struct{}, len(schema.Fields))

	for i := range schema.Fields {
		f := &schema.Fields[i]
		declared[f.Name] = struct{}{}
		path := join(prefix, f.Name)

		raw, present := payload[f.Name]
		if s, ok := raw.(string); ok && f.Kind == String && f.Trim {
			raw = strings.TrimSpace(s)
		}
		if !present || raw == nil || raw == "" {
			if f.Required {
				*errs = append(*errs, customerrors.FieldError{Field: path, Reason: "is required"})
			}
			continue
		}
		if v, ok := validateValue(path, raw, f, errs); ok {
			values[f.Name] = v
		}
	}

	if schema.Strict {
		var unknown []string
		for name := range payload {
			if _, ok := declared[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			*errs = append(*errs, customerrors.FieldError{Field: join(prefix, name), Reason: "is not allowed"})
		}
	}
	return values
}

func validateValue(path string, raw any, f *Field, errs *[]customerrors.FieldError) (any, bool) {
	fail := func(reason string) (any, bool) {
		*errs = append(*errs, customerrors.FieldError{Field: path, Reason: reason})
		return nil, false
	}

	switch f.Kind {
	case String:
		s, ok := raw.(string)
		if !ok {
			return fail("must be a string")
		}
		if reason := checkString(s, f); reason != "" {
			return fail(reason)
		}
		return s, true

	case Number:
		n, ok := toFloat(raw)
		if !ok {
			return fail("must be a " + f.Kind.String())
		}
		if reason := checkNumber(n, f); reason != "" {
			return fail(reason)
		}
		return n, true

	case Array:
		items, ok := raw.([]any)
		if !ok {
			return fail("must be an array")
		}
		limit := f.MaxItems
		if limit <= 0 {
			limit = DefaultMaxItems
		}
		if len(items) > limit {
			return fail(fmt.Sprintf("must contain at most %d items", limit))
		}
		if f.Items == nil {
			return fail("has no item schema")
		}
		before := len(*errs)
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				*errs = append(*errs, customerrors.FieldError{Field: itemPath, Reason: "must not be null"})
				continue
			}
			if v, ok := validateValue(itemPath, item, f.Items, errs); ok {
				out = append(out, v)
			}
		}
		return out, len(*errs) == before

	case Object:
		obj, ok := raw.(map[string]any)
		if !ok {
			return fail("must be an object")
		}
		if f.Schema == nil {
			return fail("has no schema")
		}
		before := len(*errs)
		v := validateObject(path, obj, *f.Schema, errs)
		return v, len(*errs) == before
	}
	return fail("has an unsupported type")
}

func checkString(s string, f *Field) string {
	n := utf8.RuneCountInString(s)
	if f.MinLen > 0 && n < f.MinLen {
		return fmt.Sprintf("must be at least %d characters", f.MinLen)
	}
	if f.MaxLen > 0 && n > f.MaxLen {
		return fmt.Sprintf("must be at most %d characters", f.MaxLen)
	}
	if len(f.OneOf) > 0 && !contains(f.OneOf, s) {
		return "must be one of the allowed values"
	}
	if f.Pattern != nil && !f.Pattern.MatchString(s) {
		return "has an invalid format"
	}
	switch f.Format {
	case FormatEmail, FormatAlnum:
		if formats.Var(s, string(f.Format)) != nil {
			return "must be a valid " + string(f.Format)
		}
	}
	return ""
}

func checkNumber(n float64, f *Field) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "must be a finite number"
	}
	if f.Positive && n <= 0 {
		return "must be positive"
	}
	if f.Min != nil && n < *f.Min {
		return fmt.Sprintf("must be at least %v", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Sprintf("must be at most %v", *f.Max)
	}
	return ""
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
