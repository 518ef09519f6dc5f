package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventMergedViewUpdated EventType = "merged_view_updated"
	EventSeriesUpdated     EventType = "series_updated"
	EventFetchFailed       EventType = "fetch_failed"
	EventObjectProvisioned EventType = "object_provisioned"
	EventObjectDeleted     EventType = "object_deleted"
	EventDiscoveryRun      EventType = "discovery_run"
	EventMonitorOpened     EventType = "monitor_opened"
	EventMonitorClosed     EventType = "monitor_closed"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// FetchFailure is the payload of EventFetchFailed
type FetchFailure struct {
	Resource string `json:"resource"`
	ObjectID int64  `json:"object_id,omitempty"`
	Error    string `json:"error"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
