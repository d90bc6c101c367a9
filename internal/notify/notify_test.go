package notify

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/campick-system/internal/model"
)

type recordingPublisher struct {
	events []string
}

func (r *recordingPublisher) Publish(event string, payload any) {
	r.events = append(r.events, event)
}

func TestMulti_FansOutToAllPublishers(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{}

	m := Multi{a, b, Noop{}}
	m.Publish(EventNewOrder, OrderEvent{})
	m.Publish(EventOrderUpdate, OrderEvent{})

	for _, p := range []*recordingPublisher{a, b} {
		if len(p.events) != 2 || p.events[0] != EventNewOrder || p.events[1] != EventOrderUpdate {
			t.Fatalf("unexpected events: %v", p.events)
		}
	}
}

func TestHub_PublishEnqueuesEnvelope(t *testing.T) {
	hub := NewHub(zap.NewNop())

	hub.Publish(EventNewOrder, OrderEvent{
		Order:    model.Order{ID: "o-1", Status: model.OrderStatusPending},
		UserName: "Ali",
	})

	select {
	case msg := <-hub.broadcast:
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Event != EventNewOrder {
			t.Errorf("event = %q, want %q", env.Event, EventNewOrder)
		}
	default:
		t.Fatal("expected message in broadcast queue")
	}
}

func TestHub_PublishDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(zap.NewNop())

	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.Publish(EventOrderUpdate, OrderEvent{})
	}

	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Fatalf("queue length = %d, want %d", len(hub.broadcast), cap(hub.broadcast))
	}
}
