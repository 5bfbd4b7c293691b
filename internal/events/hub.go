package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	OrderCreated          = "orderCreated"
	OrderStatusChanged    = "orderStatusChanged"
	ShipmentCreated       = "shipmentCreated"
	ShipmentStatusChanged = "shipmentStatusChanged"
	MovementRecorded      = "movementRecorded"
)

// Topics lists every topic the hub carries.
var Topics = []string{OrderCreated, OrderStatusChanged, ShipmentCreated, ShipmentStatusChanged, MovementRecorded}

type Event struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func New(topic string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher is what services need from the hub.
type Publisher interface {
	Publish(Event)
}

type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

// Publish never blocks: subscribers that are not keeping up miss the event.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping event for slow subscriber", "topic", ev.Topic, "subscriber", id, "event", ev.ID)
		}
	}
}

// Subscribe returns a channel of events on topic and a cancel func that
// closes it.
func (h *Hub) Subscribe(topic string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]chan Event)
	}
	h.subs[topic][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], id)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
