package events

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// InMemoryEventStore keeps every run journal in memory. Subscribers are notified
// synchronously, in append order, after the store lock is released.
type InMemoryEventStore struct {
	streams     map[string][]Event
	subscribers map[string][]*subscription
	mutex       sync.RWMutex
	allEvents   []Event
	logger      *zap.Logger
}

type subscription struct {
	handler EventHandler
}

func NewInMemoryEventStore(logger *zap.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventStore{
		streams:     make(map[string][]Event),
		subscribers: make(map[string][]*subscription),
		allEvents:   make([]Event, 0),
		logger:      logger.Named("events"),
	}
}

// Verify interface compliance
var _ EventStore = (*InMemoryEventStore)(nil)

// AppendEvent adds event to the journal of its run and notifies subscribers
func (s *InMemoryEventStore) AppendEvent(event Event) error {
	runID := event.RunID()
	if runID == "" {
		return fmt.Errorf("failed to append %s event: no run ID", event.Type())
	}

	s.mutex.Lock()
	stored := RunEvent{
		Kind:    event.Type(),
		Run:     runID,
		Try:     event.Attempt(),
		Payload: event.Data(),
		At:      event.Timestamp(),
		Seq:     len(s.streams[runID]) + 1,
	}
	s.streams[runID] = append(s.streams[runID], stored)
	s.allEvents = append(s.allEvents, stored)

	subs := make([]*subscription, 0, len(s.subscribers[event.Type()])+len(s.subscribers[AllEvents]))
	subs = append(subs, s.subscribers[event.Type()]...)
	subs = append(subs, s.subscribers[AllEvents]...)
	s.mutex.Unlock()

	for _, sub := range subs {
		if !sub.handler.CanHandle(event.Type()) {
			continue
		}
		if err := sub.handler.Handle(stored); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("event_type", event.Type()),
				zap.String("run_id", runID),
				zap.Int("attempt", stored.Try),
				zap.Error(err))
		}
	}
	return nil
}

// ReadRun returns the journal of runID from fromVersion on
func (s *InMemoryEventStore) ReadRun(runID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	journal, exists := s.streams[runID]
	if !exists {
		return []Event{}, nil
	}

	if fromVersion < 1 {
		fromVersion = 1
	}

	if fromVersion > len(journal) {
		return []Event{}, nil
	}

	out := make([]Event, len(journal)-fromVersion+1)
	copy(out, journal[fromVersion-1:])
	return out, nil
}

// ReadAllEvents returns every run's events in append order
func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}

	if fromPosition >= len(s.allEvents) {
		return []Event{}, nil
	}

	out := make([]Event, len(s.allEvents)-fromPosition)
	copy(out, s.allEvents[fromPosition:])
	return out, nil
}

// Subscribe registers handler for eventTypes; AllEvents matches every type
func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sub := &subscription{handler: handler}
	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], sub)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, subs := range s.subscribers {
		kept := make([]*subscription, 0, len(subs))
		for _, sub := range subs {
			if !sameHandler(sub.handler, handler) {
				kept = append(kept, sub)
			}
		}
		s.subscribers[eventType] = kept
	}

	return nil
}

// sameHandler compares handlers, treating uncomparable ones such as
// HandlerFunc as never equal
func sameHandler(a, b EventHandler) bool {
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
