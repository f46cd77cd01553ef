package invoice

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/invoicer/internal/dto"
	"github.com/Additional-Code/invoicer/internal/entity"
	"github.com/Additional-Code/invoicer/internal/form"
	"github.com/Additional-Code/invoicer/internal/presentation/http/response"
	service "github.com/Additional-Code/invoicer/internal/service/invoice"
	"github.com/Additional-Code/invoicer/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/invoicer/transport/http/invoice")

// Service is the subset of the invoice service the HTTP transport drives.
type Service interface {
	Create(ctx context.Context, in form.Input, nav service.Navigator) (*entity.Invoice, error)
	Update(ctx context.Context, id string, in form.Input, nav service.Navigator) error
	Delete(ctx context.Context, id string) error
	Listing(ctx context.Context) (dto.InvoiceListing, error)
	ListingPath() string
}

// Handler exposes invoice endpoints over HTTP.
type Handler struct {
	svc Service
}

// NewHandler constructs an invoice Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the listing view and its mutations under the listing path.
// HTML forms reach PUT and DELETE through POST with a _method field.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group(h.svc.ListingPath())
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

// redirect records where the service asked the client to go.
type redirect struct {
	path string
}

func (r *redirect) Navigate(path string) {
	r.path = path
}

func (h *Handler) list(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.list")
	defer span.End()

	listing, err := h.svc.Listing(ctx)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	return response.New(c).WithData(listing).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var in form.Input
	if err := c.Bind(&in); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.create")
	defer span.End()

	nav := &redirect{}
	inv, err := h.svc.Create(ctx, in, nav)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(toDTO(inv)).WithRedirect(nav.path).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	var in form.Input
	if err := c.Bind(&in); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.update", trace.WithAttributes(attribute.String("invoice.id", id)))
	defer span.End()

	nav := &redirect{}
	if err := h.svc.Update(ctx, id, in, nav); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithRedirect(nav.path).Build()
}

func (h *Handler) remove(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.delete", trace.WithAttributes(attribute.String("invoice.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func toDTO(inv *entity.Invoice) dto.InvoiceListItem {
	return dto.InvoiceListItem{
		ID:         inv.ID,
		CustomerID: inv.CustomerID,
		Amount:     inv.Amount,
		Status:     inv.Status,
		Date:       string(inv.Date),
	}
}
