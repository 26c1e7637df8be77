package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meghashyamc/clinicsearch/logger"
)

type Event string

const (
	EventHighlight Event = "highlight"
	EventClear     Event = "clear"
	EventNavigate  Event = "navigate"
)

const subscriberBufferSize = 16

// Message travels on a topic. Highlight topics are named after the browser
// session that owns them.
type Message struct {
	Topic       string    `json:"topic"`
	Event       Event     `json:"event"`
	HighlightID string    `json:"highlight_id,omitempty"`
	Page        string    `json:"page,omitempty"`
	Route       string    `json:"route,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Bus delivers messages to the subscribers of their topic.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(topic string) *Subscriber
}

// Hub is the in-process Bus.
type Hub struct {
	mu            sync.RWMutex
	logger        logger.Logger
	subscriptions map[string]map[*Subscriber]bool
}

type Subscriber struct {
	ID        uuid.UUID
	topic     string
	outbound  chan Message
	hub       *Hub
	closeOnce sync.Once
}

func NewHub(logger logger.Logger) *Hub {
	return &Hub{
		logger:        logger,
		subscriptions: make(map[string]map[*Subscriber]bool),
	}
}

func (h *Hub) Subscribe(topic string) *Subscriber {
	subscriber := &Subscriber{
		ID:       uuid.New(),
		topic:    strings.TrimSpace(topic),
		outbound: make(chan Message, subscriberBufferSize),
		hub:      h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, exists := h.subscriptions[subscriber.topic]
	if !exists {
		subscribers = make(map[*Subscriber]bool)
		h.subscriptions[subscriber.topic] = subscribers
	}
	subscribers[subscriber] = true

	h.logger.Debug("subscribed", "subscriber_id", subscriber.ID, "topic", subscriber.topic)
	return subscriber
}

// Publish delivers msg to the local subscribers of its topic. It never blocks:
// a subscriber whose buffer is full misses the message.
func (h *Hub) Publish(ctx context.Context, msg Message) error {
	h.Broadcast(msg)
	return nil
}

func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.Topic == "" {
		return
	}
	for subscriber := range h.subscriptions[msg.Topic] {
		select {
		case subscriber.outbound <- msg:
		default:
			h.logger.Warn("dropping message; subscriber buffer full", "subscriber_id", subscriber.ID, "topic", msg.Topic, "event", msg.Event)
		}
	}
}

// Subscribers returns how many subscribers a topic currently has.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[topic])
}

func (h *Hub) remove(subscriber *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.subscriptions[subscriber.topic]; ok {
		delete(subscribers, subscriber)
		if len(subscribers) == 0 {
			delete(h.subscriptions, subscriber.topic)
		}
	}
	close(subscriber.outbound)
	h.logger.Debug("unsubscribed", "subscriber_id", subscriber.ID, "topic", subscriber.topic)
}

// C is closed once the subscriber is closed.
func (s *Subscriber) C() <-chan Message {
	return s.outbound
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { s.hub.remove(s) })
}
