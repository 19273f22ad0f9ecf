package errorhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"beershop/pkg/customerrors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, method string, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/x", nil)
	rec := httptest.NewRecorder()
	HandleError(err, e.NewContext(req, rec))

	body := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHandleError_AppError(t *testing.T) {
	rec, body := run(t, http.MethodGet, customerrors.New(customerrors.KindRedirectNotAllowed, "Redirect not allowed"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Redirect not allowed", body["error"])
}

func TestHandleError_ValidationDetails(t *testing.T) {
	err := customerrors.Validation("Validation error", customerrors.FieldError{Field: "email", Reason: "is required"})
	rec, body := run(t, http.MethodPost, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details, ok := body["details"].([]any)
	require.True(t, ok)
	assert.Len(t, details, 1)
}

func TestHandleError_UntypedErrorHidesDetail(t *testing.T) {
	rec, body := run(t, http.MethodGet, errors.New(`pq: syntax error at "/var/lib/secret.db"`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.NotContains(t, rec.Body.String(), "secret.db")
}

func TestHandleError_InternalAppErrorHidesCause(t *testing.T) {
	rec, body := run(t, http.MethodGet, customerrors.Internal(errors.New("SELECT * FROM users")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.NotContains(t, rec.Body.String(), "SELECT")
}

func TestHandleError_EchoHTTPError(t *testing.T) {
	rec, body := run(t, http.MethodGet, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request Entity Too Large", body["error"])
}

func TestHandleError_HeadHasNoBody(t *testing.T) {
	rec, _ := run(t, http.MethodHead, customerrors.NotFound(""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
