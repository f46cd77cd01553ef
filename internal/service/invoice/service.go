package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/cache"
	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/dto"
	"github.com/Additional-Code/invoicer/internal/entity"
	"github.com/Additional-Code/invoicer/internal/form"
	"github.com/Additional-Code/invoicer/internal/messaging"
	"github.com/Additional-Code/invoicer/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/invoicer/service/invoice")
	serviceMeter  = otel.Meter("github.com/Additional-Code/invoicer/service/invoice")
)

// Store is the persistence the service needs. Each method maps to exactly one
// SQL statement.
type Store interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	Update(ctx context.Context, inv *entity.Invoice) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, limit int) ([]entity.Invoice, error)
}

// Invalidator versions a cached view. ViewKey names the cache key of the
// view's current version; Invalidate marks it stale.
type Invalidator interface {
	ViewKey(ctx context.Context, path string) (string, error)
	Invalidate(ctx context.Context, path string) error
}

// Navigator directs the client to a follow-up view. It is supplied per call
// by the transport that owns the client connection.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"

	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeFailed  = "failed"
)

// Service validates invoice form submissions and applies them to the store.
// It keeps no mutable state between calls.
type Service struct {
	store       Store
	schema      *form.Schema
	invalidator Invalidator
	cache       cache.Store
	publisher   messaging.Client
	logger      *zap.Logger
	mutations   metric.Int64Counter

	listingPath  string
	listingLimit int
	listingTTL   time.Duration
	publish      bool

	now   func() time.Time
	newID func() string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store       Store
	Schema      *form.Schema
	Invalidator Invalidator
	Cache       cache.Store
	Publisher   messaging.Client
	Config      config.Config
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	mutations, err := serviceMeter.Int64Counter("invoices.mutations",
		metric.WithDescription("Invoice mutations by operation and outcome."),
	)
	if err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:        p.Store,
		schema:       p.Schema,
		invalidator:  p.Invalidator,
		cache:        p.Cache,
		publisher:    p.Publisher,
		logger:       logger,
		mutations:    mutations,
		listingPath:  p.Config.Invoices.ListingPath,
		listingLimit: p.Config.Invoices.ListingLimit,
		listingTTL:   p.Config.Invoices.ListingTTL,
		publish:      p.Config.Messaging.Enabled,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// ListingPath is the view invalidated and navigated to after mutations.
func (s *Service) ListingPath() string {
	return s.listingPath
}

// Create validates in and inserts a new invoice dated today (UTC). On success
// the listing view is invalidated and nav is sent to it.
func (s *Service) Create(ctx context.Context, in form.Input, nav Navigator) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Create")
	defer span.End()

	fields, fieldErrs := s.schema.Parse(in)
	if len(fieldErrs) > 0 {
		s.record(ctx, opCreate, outcomeInvalid)
		span.SetStatus(codes.Error, "validation failed")
		return nil, errorbank.Unprocessable(msgCreateInvalid, errorbank.WithFieldErrors(fieldErrs))
	}

	inv := &entity.Invoice{
		ID:         s.newID(),
		CustomerID: fields.CustomerID,
		Amount:     fields.AmountCents,
		Status:     string(fields.Status),
		Date:       entity.DateOf(s.now()),
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID))

	if err := s.store.Create(ctx, inv); err != nil {
		s.fail(ctx, span, opCreate, inv.ID, err)
		return nil, errorbank.Internal(msgCreateFailed, errorbank.WithCause(err))
	}

	s.settle(ctx, opCreate, eventFor(EventCreated, inv, s.now()))
	navigate(nav, s.listingPath)
	return inv, nil
}

// Update validates in and overwrites customer, amount and status of invoice
// id. The date is never changed. Updating an id that does not exist is not an
// error.
func (s *Service) Update(ctx context.Context, id string, in form.Input, nav Navigator) error {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Update", trace.WithAttributes(attribute.String("invoice.id", id)))
	defer span.End()

	if id == "" {
		return errorbank.BadRequest(msgMissingID, errorbank.WithDetail("param", "id"))
	}

	fields, fieldErrs := s.schema.Parse(in)
	if len(fieldErrs) > 0 {
		s.record(ctx, opUpdate, outcomeInvalid)
		span.SetStatus(codes.Error, "validation failed")
		return errorbank.Unprocessable(msgUpdateInvalid, errorbank.WithFieldErrors(fieldErrs))
	}

	inv := &entity.Invoice{
		ID:         id,
		CustomerID: fields.CustomerID,
		Amount:     fields.AmountCents,
		Status:     string(fields.Status),
	}

	affected, err := s.store.Update(ctx, inv)
	if err != nil {
		s.fail(ctx, span, opUpdate, id, err)
		return errorbank.Internal(msgUpdateFailed, errorbank.WithCause(err))
	}
	if affected == 0 {
		s.logger.Info("invoice update matched no rows", zap.String("id", id))
	}

	s.settle(ctx, opUpdate, eventFor(EventUpdated, inv, s.now()))
	navigate(nav, s.listingPath)
	return nil
}

// Delete removes invoice id and invalidates the listing view. It does not
// navigate. Deleting an id that does not exist is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Delete", trace.WithAttributes(attribute.String("invoice.id", id)))
	defer span.End()

	if id == "" {
		return errorbank.BadRequest(msgMissingID, errorbank.WithDetail("param", "id"))
	}

	affected, err := s.store.Delete(ctx, id)
	if err != nil {
		s.fail(ctx, span, opDelete, id, err)
		return errorbank.Internal(msgDeleteFailed, errorbank.WithCause(err))
	}
	if affected == 0 {
		s.logger.Info("invoice delete matched no rows", zap.String("id", id))
	}

	s.settle(ctx, opDelete, Event{Type: EventDeleted, ID: id, OccurredAt: s.now().UTC()})
	return nil
}

// Listing returns the invoice listing view, serving it from cache until the
// next mutation invalidates it.
func (s *Service) Listing(ctx context.Context) (dto.InvoiceListing, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Listing")
	defer span.End()

	// The key is fixed before the load; a mutation committed meanwhile moves
	// readers to a newer key and the result stored here goes unread.
	key, err := s.listingKey(ctx)
	if err == nil {
		var listing dto.InvoiceListing
		if listing, err = s.listingFromCache(ctx, key); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return listing, nil
		}
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("invoice listing cache read failed", zap.Error(err))
		key = ""
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	invoices, err := s.store.List(ctx, s.listingLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("list invoices failed", zap.Error(err))
		return dto.InvoiceListing{}, errorbank.Internal(msgListFailed, errorbank.WithCause(err))
	}

	listing := toListing(invoices)
	if err := s.storeListing(ctx, key, listing); err != nil {
		s.logger.Warn("invoice listing cache write failed", zap.Error(err))
	}
	return listing, nil
}

// settle runs the side effects of a successful mutation. Failures here are
// logged and never undo or fail the mutation.
func (s *Service) settle(ctx context.Context, op string, event Event) {
	s.record(ctx, op, outcomeOK)

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, s.listingPath); err != nil {
			s.logger.Warn("invoice listing invalidation failed",
				zap.String("path", s.listingPath),
				zap.String("operation", op),
				zap.Error(err),
			)
		}
	}
	s.publishEvent(ctx, event)
}

func (s *Service) fail(ctx context.Context, span trace.Span, op, id string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	s.record(ctx, op, outcomeFailed)
	s.logger.Error("invoice mutation failed",
		zap.String("operation", op),
		zap.String("id", id),
		zap.Error(err),
	)
}

func (s *Service) record(ctx context.Context, op, outcome string) {
	if s.mutations == nil {
		return
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func (s *Service) publishEvent(ctx context.Context, event Event) {
	if !s.publish || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal invoice event", zap.Error(err))
		return
	}
	headers := map[string]string{EventTypeHeader: string(event.Type)}
	if err := s.publisher.Publish(ctx, []byte("invoice-"+event.ID), payload, headers); err != nil {
		s.logger.Error("publish invoice event",
			zap.String("type", string(event.Type)),
			zap.String("id", event.ID),
			zap.Error(err),
		)
	}
}

// listingKey reports cache.ErrCacheMiss when listing caching is not wired.
func (s *Service) listingKey(ctx context.Context) (string, error) {
	if s.cache == nil || s.invalidator == nil {
		return "", cache.ErrCacheMiss
	}
	return s.invalidator.ViewKey(ctx, s.listingPath)
}

func (s *Service) listingFromCache(ctx context.Context, key string) (dto.InvoiceListing, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return dto.InvoiceListing{}, err
	}
	var listing dto.InvoiceListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return dto.InvoiceListing{}, err
	}
	return listing, nil
}

func (s *Service) storeListing(ctx context.Context, key string, listing dto.InvoiceListing) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, raw, s.listingTTL)
}

func navigate(nav Navigator, path string) {
	if nav != nil {
		nav.Navigate(path)
	}
}

func eventFor(t EventType, inv *entity.Invoice, at time.Time) Event {
	return Event{
		Type:       t,
		ID:         inv.ID,
		CustomerID: inv.CustomerID,
		Amount:     inv.Amount,
		Status:     inv.Status,
		Date:       string(inv.Date),
		OccurredAt: at.UTC(),
	}
}

func toListing(invoices []entity.Invoice) dto.InvoiceListing {
	items := make([]dto.InvoiceListItem, 0, len(invoices))
	for _, inv := range invoices {
		item := dto.InvoiceListItem{
			ID:         inv.ID,
			CustomerID: inv.CustomerID,
			Amount:     inv.Amount,
			Status:     inv.Status,
			Date:       string(inv.Date),
		}
		if inv.Customer != nil {
			item.CustomerName = inv.Customer.Name
		}
		items = append(items, item)
	}
	return dto.InvoiceListing{Invoices: items}
}
