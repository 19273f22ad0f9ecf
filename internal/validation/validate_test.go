package validation

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"beershop/pkg/customerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Strict: true,
	Fields: []Field{
		{Name: "name", Kind: String, Required: true, MinLen: 2, MaxLen: 50},
		{Name: "email", Kind: String, Required: true, Format: FormatEmail},
		{Name: "price", Kind: Number, Positive: true},
		{Name: "brand", Kind: String, Format: FormatAlnum},
		{Name: "code", Kind: String, Pattern: regexp.MustCompile(`^[a-z]{3}$`)},
		{Name: "currency", Kind: String, OneOf: []string{"USD", "EUR"}},
	},
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *customerrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, customerrors.KindValidation, appErr.Kind)
	out := map[string]string{}
	for _, f := range appErr.Fields {
		out[f.Field] = f.Reason
	}
	return out
}

func TestValidate_Accepts(t *testing.T) {
	values, err := Validate(map[string]any{
		"name":     "Heineken",
		"email":    "a@b.io",
		"price":    4.5,
		"brand":    "abc123",
		"code":     "xyz",
		"currency": "USD",
	}, testSchema)
	require.NoError(t, err)
	assert.Equal(t, "Heineken", values.String("name"))
	assert.Equal(t, 4.5, values.Float("price"))
}

func TestValidate_ReportsEveryField(t *testing.T) {
	_, err := Validate(map[string]any{
		"name":     "x",
		"price":    -1.0,
		"brand":    "no spaces!",
		"code":     "toolong",
		"currency": "GBP",
	}, testSchema)

	errs := fieldErrors(t, err)
	assert.Contains(t, errs, "name")
	assert.Equal(t, "is required", errs["email"])
	assert.Equal(t, "must be positive", errs["price"])
	assert.Contains(t, errs, "brand")
	assert.Equal(t, "has an invalid format", errs["code"])
	assert.Contains(t, errs, "currency")
}

func TestValidate_StrictRejectsUnknownFields(t *testing.T) {
	_, err := Validate(map[string]any{
		"name":  "Heineken",
		"email": "a@b.io",
		"role":  "admin",
	}, testSchema)

	assert.Equal(t, "is not allowed", fieldErrors(t, err)["role"])
}

func TestValidate_NonStrictIgnoresUnknownFields(t *testing.T) {
	schema := testSchema
	schema.Strict = false
	values, err := Validate(map[string]any{"name": "Heineken", "email": "a@b.io", "role": "admin"}, schema)
	require.NoError(t, err)
	assert.False(t, values.Has("role"))
}

func TestValidate_TypeMismatch(t *testing.T) {
	_, err := Validate(map[string]any{"name": 42.0, "email": "a@b.io", "price": "cheap"}, testSchema)
	errs := fieldErrors(t, err)
	assert.Equal(t, "must be a string", errs["name"])
	assert.Equal(t, "must be a number", errs["price"])
}

func TestValidate_ArraysAreBounded(t *testing.T) {
	itemSchema := &Schema{Strict: true, Fields: []Field{
		{Name: "name", Kind: String, Required: true, MaxLen: 50},
		{Name: "price", Kind: Number, Required: true, Positive: true},
	}}
	schema := Schema{Strict: true, Fields: []Field{
		{Name: "beers", Kind: Array, Required: true, Items: &Field{Kind: Object, Schema: itemSchema}},
	}}

	items := make([]any, 0, DefaultMaxItems+1)
	for i := 0; i < DefaultMaxItems; i++ {
		items = append(items, map[string]any{"name": "b", "price": 1.0})
	}
	values, err := Validate(map[string]any{"beers": items}, schema)
	require.NoError(t, err)
	assert.Len(t, values.List("beers"), DefaultMaxItems)

	items = append(items, map[string]any{"name": "b", "price": 1.0})
	_, err = Validate(map[string]any{"beers": items}, schema)
	assert.Contains(t, fieldErrors(t, err)["beers"], "at most 50")
}

func TestValidate_NestedErrorsCarryPath(t *testing.T) {
	itemSchema := &Schema{Strict: true, Fields: []Field{
		{Name: "price", Kind: Number, Required: true, Positive: true},
	}}
	schema := Schema{Fields: []Field{
		{Name: "beers", Kind: Array, Items: &Field{Kind: Object, Schema: itemSchema}},
	}}
	_, err := Validate(map[string]any{"beers": []any{
		map[string]any{"price": 1.0},
		map[string]any{"price": 0.0, "evil": true},
	}}, schema)

	errs := fieldErrors(t, err)
	assert.Equal(t, "must be positive", errs["beers[1].price"])
	assert.Equal(t, "is not allowed", errs["beers[1].evil"])
}

func TestValidateStrings_ParsesNumbers(t *testing.T) {
	schema := Schema{Fields: []Field{{Name: "price", Kind: Number, Required: true, Positive: true}}}
	values, err := ValidateStrings(map[string]string{"price": "3.25"}, schema)
	require.NoError(t, err)
	assert.Equal(t, 3.25, values.Float("price"))

	_, err = ValidateStrings(map[string]string{"price": "1; DROP TABLE beers"}, schema)
	assert.Equal(t, "must be a number", fieldErrors(t, err)["price"])
}

func TestValidate_TrimBeforeBounds(t *testing.T) {
	schema := Schema{Fields: []Field{{Name: "name", Kind: String, Required: true, MinLen: 2, MaxLen: 5, Trim: true}}}

	_, err := Validate(map[string]any{"name": "   "}, schema)
	assert.Equal(t, "is required", fieldErrors(t, err)["name"])

	_, err = Validate(map[string]any{"name": " a "}, schema)
	assert.Equal(t, "must be at least 2 characters", fieldErrors(t, err)["name"])

	_, err = Validate(map[string]any{"name": "  Goldstar  "}, schema)
	assert.Equal(t, "must be at most 5 characters", fieldErrors(t, err)["name"])

	values, err := Validate(map[string]any{"name": " Leffe "}, schema)
	require.NoError(t, err)
	assert.Equal(t, "Leffe", values.String("name"))
}

func TestDecodeJSON(t *testing.T) {
	payload, err := DecodeJSON(strings.NewReader(`{"price": 12.50, "name": "x"}`))
	require.NoError(t, err)
	n, ok := toFloat(payload["price"])
	assert.True(t, ok)
	assert.Equal(t, 12.5, n)

	for _, body := range []string{`[1,2]`, `{"a":1}{"b":2}`, `{bad`, `null`} {
		_, err := DecodeJSON(strings.NewReader(body))
		assert.Error(t, err, body)
	}

	payload, err = DecodeJSON(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestDecodeRequest_Form(t *testing.T) {
	schema := Schema{Strict: true, Fields: []Field{
		{Name: "email", Kind: String},
		{Name: "price", Kind: Number},
	}}
	form := url.Values{"email": {"a@b.io"}, "price": {"2"}, FormTokenField: {"tok"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	payload, err := DecodeRequest(req, schema)
	require.NoError(t, err)
	assert.Equal(t, 2.0, payload["price"])
	assert.NotContains(t, payload, FormTokenField)

	form = url.Values{"email": {"a@b.io", "c@d.io"}}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = DecodeRequest(req, schema)
	assert.Error(t, err)
}
