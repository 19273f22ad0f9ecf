package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"beershop/pkg/customerrors"
)

// FormTokenField carries the anti-forgery token in form posts. It is consumed
// by the CSRF gate and never part of a route schema.
const FormTokenField = "_csrf"

// DecodeRequest reads a JSON object or url-encoded form body into a raw
// payload ready for Validate. Form values arrive as strings and numeric
// fields of schema are parsed.
func DecodeRequest(r *http.Request, schema Schema) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, customerrors.Validation("Invalid request body")
		}
		payload := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			if k == FormTokenField {
				continue
			}
			if len(v) != 1 {
				// repeated keys are parameter pollution
				return nil, customerrors.Validation("Invalid request body", customerrors.FieldError{Field: k, Reason: "must not be repeated"})
			}
			payload[k] = v[0]
		}
		return coerceNumbers(payload, schema), nil
	default:
		return DecodeJSON(r.Body)
	}
}

// DecodeJSON decodes exactly one JSON object, keeping numbers exact.
func DecodeJSON(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, customerrors.Validation("Invalid JSON body")
	}
	if payload == nil {
		return nil, customerrors.Validation("Invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, customerrors.Validation("Invalid JSON body")
	}
	return payload, nil
}
