package invoice

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/messaging"
	invoicesvc "github.com/Additional-Code/invoicer/internal/service/invoice"
)

func message(t *testing.T, event invoicesvc.Event, header string) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Message{
		Topic:   "invoices.events",
		Value:   raw,
		Headers: map[string]string{invoicesvc.EventTypeHeader: header},
	}
}

func TestNewEventHandlerUsesConfiguredTopic(t *testing.T) {
	reg := NewEventHandler(zap.NewNop(), config.Config{Messaging: config.Messaging{Kafka: config.Kafka{Topic: "invoices.events"}}})
	assert.Equal(t, "invoices.events", reg.Topic)
	assert.NotNil(t, reg.Handler)
}

func TestHandleEventLogsCreated(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := handleEvent(zap.New(core))

	event := invoicesvc.Event{Type: invoicesvc.EventCreated, ID: "1", CustomerID: "abc", Amount: 1250, Status: "pending", OccurredAt: time.Now()}
	require.NoError(t, handler(context.Background(), message(t, event, string(event.Type))))

	entries := logs.FilterMessage("invoice event processed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1250), entries[0].ContextMap()["amount"])
}

func TestHandleEventRejectsGarbage(t *testing.T) {
	handler := handleEvent(zap.NewNop())
	assert.Error(t, handler(context.Background(), messaging.Message{Value: []byte("{")}))
}

func TestHandleEventRejectsHeaderMismatch(t *testing.T) {
	handler := handleEvent(zap.NewNop())
	event := invoicesvc.Event{Type: invoicesvc.EventDeleted, ID: "1"}
	assert.Error(t, handler(context.Background(), message(t, event, string(invoicesvc.EventCreated))))
}

func TestHandleEventSkipsUnknownType(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	handler := handleEvent(zap.New(core))

	require.NoError(t, handler(context.Background(), message(t, invoicesvc.Event{Type: "invoice.archived", ID: "1"}, "")))
	assert.Equal(t, 1, logs.FilterMessage("unknown invoice event type").Len())
}
