package response

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/invoicer/pkg/errorbank"
)

// Builder assembles the JSON envelope shared by every invoice endpoint.
type Builder struct {
	ctx      echo.Context
	status   int
	data     any
	err      error
	meta     map[string]any
	redirect string
}

type successBody struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// errorBody mirrors the form result contract at the top level (message and
// per-field errors) and keeps the typed error underneath.
type errorBody struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   errorDetail         `json:"error"`
	Meta    map[string]any      `json:"meta,omitempty"`
}

type errorDetail struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered instead of the success payload.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithRedirect directs the client to path after a successful request. Browser
// form posts receive a 303 See Other; other clients get meta.redirect.
func (b *Builder) WithRedirect(path string) *Builder {
	b.redirect = path
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	if b.redirect != "" {
		if IsFormPost(b.ctx.Request()) {
			return b.ctx.Redirect(http.StatusSeeOther, b.redirect)
		}
		b.WithMeta("redirect", b.redirect)
	}
	return b.ctx.JSON(b.status, successBody{Success: true, Data: b.data, Meta: b.meta})
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, errorBody{
		Message: appErr.Message(),
		Errors:  appErr.FieldErrors(),
		Error: errorDetail{
			Kind:    string(appErr.Kind()),
			Message: appErr.Message(),
			Details: appErr.Details(),
		},
		Meta: b.meta,
	})
}

// IsFormPost reports whether r carries an HTML form body.
func IsFormPost(r *http.Request) bool {
	ct := r.Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}
