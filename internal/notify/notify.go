// Package notify fans engine events out to displays and other services.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Event types.
const (
	TypeItemStatus   = "item.status"
	TypeItemVoided   = "item.voided"
	TypeOfferApplied = "offer.applied"
	TypeOrderPaid    = "order.paid"
)

// Event is one notification. Room scopes it to an outlet's listeners.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event.
func NewEvent(typ, room string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{Type: typ, Room: room, Payload: raw}, nil
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
