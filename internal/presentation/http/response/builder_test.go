package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/invoicer/pkg/errorbank"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return echo.New().NewContext(req, rec), rec
}

func TestBuildSuccess(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, New(c).WithStatus(http.StatusCreated).WithData(map[string]string{"id": "1"}).WithMeta("redirect", "/dashboard/invoices").Build())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"1"},"meta":{"redirect":"/dashboard/invoices"}}`, rec.Body.String())
}

func TestBuildValidationError(t *testing.T) {
	c, rec := newContext()
	err := errorbank.Unprocessable("Missing Fields. Failed to Create Invoice.",
		errorbank.WithFieldErrors(map[string][]string{"amount": {"Please enter an amount greater than $0."}}))

	require.NoError(t, New(c).WithError(err).Build())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
		Error   struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Missing Fields. Failed to Create Invoice.", body.Message)
	assert.Equal(t, []string{"Please enter an amount greater than $0."}, body.Errors["amount"])
	assert.Equal(t, "unprocessable_entity", body.Error.Kind)
}

func TestBuildUnknownErrorIsInternal(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, New(c).WithError(errors.New("pq: secret detail")).Build())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.NotContains(t, rec.Body.String(), `"errors"`)
}

func TestBuildRedirectForJSONClients(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, New(c).WithRedirect("/dashboard/invoices").Build())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"meta":{"redirect":"/dashboard/invoices"}}`, rec.Body.String())
}

func TestBuildRedirectForFormPosts(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dashboard/invoices", strings.NewReader("status=paid"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := echo.New().NewContext(req, rec)

	require.NoError(t, New(c).WithStatus(http.StatusCreated).WithRedirect("/dashboard/invoices").Build())

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/invoices", rec.Header().Get(echo.HeaderLocation))
}

func TestBuildErrorIgnoresRedirect(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, New(c).WithRedirect("/dashboard/invoices").WithError(errorbank.Internal("Database Error: Failed to Delete Invoice.")).Build())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Database Error: Failed to Delete Invoice.")
}
