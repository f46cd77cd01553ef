package invoice

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/messaging"
	invoicesvc "github.com/Additional-Code/invoicer/internal/service/invoice"
	"github.com/Additional-Code/invoicer/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/invoicer/worker/invoice")

// Module registers invoice event handlers with the worker engine.
var Module = fx.Module("worker_invoice",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventHandler records invoice lifecycle events published by the API.
func NewEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handleEvent(logger),
	}
}

func handleEvent(logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.invoices.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event invoicesvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode invoice event", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		if header := msg.Headers[invoicesvc.EventTypeHeader]; header != "" && header != string(event.Type) {
			err := fmt.Errorf("event type header %q does not match payload %q", header, event.Type)
			span.RecordError(err)
			span.SetStatus(codes.Error, "type mismatch")
			return err
		}

		switch event.Type {
		case invoicesvc.EventCreated, invoicesvc.EventUpdated:
			logger.Info("invoice event processed",
				zap.String("type", string(event.Type)),
				zap.String("id", event.ID),
				zap.String("customer_id", event.CustomerID),
				zap.Int64("amount", event.Amount),
				zap.String("status", event.Status),
			)
		case invoicesvc.EventDeleted:
			logger.Info("invoice event processed",
				zap.String("type", string(event.Type)),
				zap.String("id", event.ID),
			)
		default:
			// Unknown types are committed so they do not block the partition.
			logger.Warn("unknown invoice event type", zap.String("type", string(event.Type)))
		}
		span.SetAttributes(attribute.String("invoice.event", string(event.Type)))
		return nil
	}
}
