// Package queue carries booking lifecycle events over RabbitMQ and hosts the
// consumer that appends them to the booking log.
package queue

import "time"

// QueueName is the durable queue every booking event is routed to.
const QueueName = "booking.events"

// Booking event types.
const (
	EventRequested      = "booking.requested"
	EventConfirmed      = "booking.confirmed"
	EventRejected       = "booking.rejected"
	EventCancelled      = "booking.cancelled"
	EventReceiptChecked = "booking.receipt_checked"
)

// BookingEvent is published whenever a slot changes hands.  It carries enough
// for consumers to log or notify without reading the database.
type BookingEvent struct {
	Type     string    `json:"type"`
	SlotID   string    `json:"slot_id"`
	FieldID  string    `json:"field_id"`
	UserID   string    `json:"user_id,omitempty"`
	TeamName string    `json:"team_name,omitempty"`
	Category string    `json:"category,omitempty"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Status   string    `json:"status"`
	Fee      float64   `json:"fee,omitempty"`
	Valid    *bool     `json:"receipt_valid,omitempty"`
	At       time.Time `json:"at"`
}
