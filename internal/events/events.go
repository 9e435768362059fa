package events

import (
	"encoding/json"
	"sync"
	"time"

	"guestms/internal/models"
)

const (
	EventReservationCreated    = "reservation_created"
	EventReservationConfirmed  = "reservation_confirmed"
	EventReservationCheckedIn  = "reservation_checked_in"
	EventReservationCheckedOut = "reservation_checked_out"
	EventReservationCanceled   = "reservation_canceled"
	EventReservationUpdated    = "reservation_updated"
)

// ReservationEventTypes lists every reservation event, for subscribers that
// want all of them.
func ReservationEventTypes() []string {
	return []string{
		EventReservationCreated,
		EventReservationConfirmed,
		EventReservationCheckedIn,
		EventReservationCheckedOut,
		EventReservationCanceled,
		EventReservationUpdated,
	}
}

// EventTypeForStatus maps the status a reservation moved into to its event.
// Notes-only updates and unknown statuses map to reservation_updated.
func EventTypeForStatus(from, to string) string {
	if from == to {
		return EventReservationUpdated
	}
	switch to {
	case models.StatusConfirmed:
		return EventReservationConfirmed
	case models.StatusCheckedIn:
		return EventReservationCheckedIn
	case models.StatusCheckedOut:
		return EventReservationCheckedOut
	case models.StatusCanceled:
		return EventReservationCanceled
	}
	return EventReservationUpdated
}

// ReservationEventPayload is the reservation snapshot handed to consumers.
type ReservationEventPayload struct {
	ReservationID  int64  `json:"reservation_id"`
	RoomID         int64  `json:"room_id"`
	RoomCode       string `json:"room_code,omitempty"`
	CustomerID     int64  `json:"customer_id"`
	CheckIn        string `json:"check_in"`
	CheckOut       string `json:"check_out"`
	Guests         int    `json:"guests"`
	TotalAmount    string `json:"total_amount"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// NewReservationPayload snapshots r. roomCode may be empty.
func NewReservationPayload(r *models.Reservation, roomCode, previousStatus string) ReservationEventPayload {
	return ReservationEventPayload{
		ReservationID:  r.ID,
		RoomID:         r.RoomID,
		RoomCode:       roomCode,
		CustomerID:     r.CustomerID,
		CheckIn:        r.CheckIn.Format(models.DateLayout),
		CheckOut:       r.CheckOut.Format(models.DateLayout),
		Guests:         r.Guests,
		TotalAmount:    r.TotalAmount.StringFixed(2),
		Status:         r.Status,
		PreviousStatus: previousStatus,
		Notes:          r.Notes,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler receives handler failures. Publishing never fails because of them.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler errors.
func (b *EventBus) OnError(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = h
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type synchronously.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
