package events

import (
	"testing"
	"time"
)

func TestHubDeliversToTopicOnly(t *testing.T) {
	h := NewHub()
	orders, cancelOrders := h.Subscribe(OrderCreated, 4)
	defer cancelOrders()
	shipments, cancelShipments := h.Subscribe(ShipmentCreated, 4)
	defer cancelShipments()

	h.Publish(New(OrderCreated, map[string]string{"number": "ORD-1"}))

	select {
	case ev := <-orders:
		if ev.Topic != OrderCreated || ev.ID == "" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("order event not delivered")
	}

	select {
	case ev := <-shipments:
		t.Fatalf("shipment subscriber got %+v", ev)
	default:
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(OrderCreated, 1)
	defer cancel()

	h.Publish(New(OrderCreated, 1))
	h.Publish(New(OrderCreated, 2))

	if got := (<-ch).Payload; got != 1 {
		t.Fatalf("expected first event, got %v", got)
	}
	select {
	case ev := <-ch:
		t.Fatalf("second event should have been dropped, got %+v", ev)
	default:
	}
}

func TestHubCancelClosesAndUnregisters(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(MovementRecorded, 1)
	if h.Subscribers(MovementRecorded) != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if h.Subscribers(MovementRecorded) != 0 {
		t.Fatalf("subscriber not removed")
	}
	h.Publish(New(MovementRecorded, nil))
}
