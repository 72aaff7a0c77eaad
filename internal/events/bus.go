package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTradeProposed  EventType = "TRADE_PROPOSED"
	EventTradePending   EventType = "TRADE_PENDING"
	EventTradeApproved  EventType = "TRADE_APPROVED"
	EventTradeRejected  EventType = "TRADE_REJECTED"
	EventTradeExpired   EventType = "TRADE_EXPIRED"
	EventTradeExecuted  EventType = "TRADE_EXECUTED"
	EventModeChanged    EventType = "MODE_CHANGED"
	EventRiskBlocked    EventType = "RISK_BLOCKED"
	EventBreakerTripped EventType = "BREAKER_TRIPPED"
	EventBreakerReset   EventType = "BREAKER_RESET"
	EventNewsStory      EventType = "NEWS_STORY"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run in their own
// goroutines so a slow consumer cannot stall publishers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishTradeDecision publishes a lifecycle event for a trade
func (b *Bus) PublishTradeDecision(eventType EventType, tradeID, symbol, side string, quantity int, notional float64, reasons []string) {
	b.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"trade_id": tradeID,
			"symbol":   symbol,
			"side":     side,
			"quantity": quantity,
			"notional": notional,
			"reasons":  reasons,
		},
	})
}

// PublishModeChanged publishes a supervision mode change
func (b *Bus) PublishModeChanged(oldMode, newMode, operator string) {
	b.Publish(Event{
		Type: EventModeChanged,
		Data: map[string]interface{}{
			"old_mode": oldMode,
			"new_mode": newMode,
			"operator": operator,
		},
	})
}

// PublishBreaker publishes a circuit breaker state change
func (b *Bus) PublishBreaker(eventType EventType, state, reason string) {
	b.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"state":  state,
			"reason": reason,
		},
	})
}

// PublishNewsStory publishes a first-seen news story
func (b *Bus) PublishNewsStory(storyID, symbol, headline, provider string, duplicates int) {
	b.Publish(Event{
		Type: EventNewsStory,
		Data: map[string]interface{}{
			"story_id":   storyID,
			"symbol":     symbol,
			"headline":   headline,
			"provider":   provider,
			"duplicates": duplicates,
		},
	})
}

// PublishError publishes an error event
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
