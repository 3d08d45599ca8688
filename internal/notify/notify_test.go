package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// --- Mock implementations ---

type mockPublisher struct {
	publishFn func(ctx context.Context, e Event) error
	events    []Event
}

func (m *mockPublisher) Publish(ctx context.Context, e Event) error {
	m.events = append(m.events, e)
	if m.publishFn == nil {
		return nil
	}
	return m.publishFn(ctx, e)
}

type mockChannel struct {
	publishWithContextFn func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.publishWithContextFn(ctx, exchange, key, mandatory, immediate, msg)
}

func (m *mockChannel) Close() error { return nil }

// =====================
// Events
// =====================

func TestNewEvent(t *testing.T) {
	e, err := NewEvent(TypeItemStatus, "outlet-1", map[string]string{"temp_id": "x", "status": "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["status"] != "done" || e.Room != "outlet-1" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	a := &mockPublisher{}
	b := &mockPublisher{publishFn: func(ctx context.Context, e Event) error { return boom }}
	c := &mockPublisher{}

	err := Multi{a, b, c}.Publish(context.Background(), Event{Type: TypeOrderPaid})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got: %v", err)
	}
	if len(a.events) != 1 || len(c.events) != 1 {
		t.Fatal("a failing publisher must not stop the others")
	}
}

// =====================
// AMQP
// =====================

func TestAMQPPublisher_Publish(t *testing.T) {
	var gotKey, gotExchange string
	var gotMsg amqp.Publishing
	p := &AMQPPublisher{
		exchange: DefaultExchange,
		ch: &mockChannel{publishWithContextFn: func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
			gotExchange, gotKey, gotMsg = exchange, key, msg
			return nil
		}},
	}

	e, _ := NewEvent(TypeItemVoided, "outlet-9", map[string]string{"temp_id": "x"})
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotExchange != DefaultExchange || gotKey != "outlet-9.item.voided" {
		t.Fatalf("unexpected route %s / %s", gotExchange, gotKey)
	}
	if gotMsg.DeliveryMode != amqp.Persistent || gotMsg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing: %+v", gotMsg)
	}
	var body Event
	if err := json.Unmarshal(gotMsg.Body, &body); err != nil || body.Type != TypeItemVoided {
		t.Fatalf("unexpected body %s: %v", gotMsg.Body, err)
	}
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	p := &AMQPPublisher{
		ch: &mockChannel{publishWithContextFn: func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
			return amqp.ErrClosed
		}},
	}
	if err := p.Publish(context.Background(), Event{Type: TypeOrderPaid}); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected ErrClosed, got: %v", err)
	}
}
