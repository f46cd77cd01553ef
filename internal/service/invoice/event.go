package invoice

import "time"

// EventType names an invoice lifecycle event.
type EventType string

const (
	EventCreated EventType = "invoice.created"
	EventUpdated EventType = "invoice.updated"
	EventDeleted EventType = "invoice.deleted"
)

// EventTypeHeader carries the EventType on published messages.
const EventTypeHeader = "event-type"

// Event is published after every successful mutation. Deletions carry only
// the id.
type Event struct {
	Type       EventType `json:"type"`
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Status     string    `json:"status,omitempty"`
	Date       string    `json:"date,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
