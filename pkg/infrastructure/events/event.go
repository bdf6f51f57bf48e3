package events

import (
	"time"
)

// Event is one entry of a generation run's journal
type Event interface {
	Type() string
	RunID() string
	// Attempt is the transaction attempt that raised the event, starting at 1.
	// Zero marks run-level events raised outside any attempt.
	Attempt() int
	Data() any
	Timestamp() time.Time
	Version() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// EventStore keeps one journal per generation run
type EventStore interface {
	AppendEvent(event Event) error
	ReadRun(runID string, fromVersion int) ([]Event, error)
	ReadAllEvents(fromPosition int) ([]Event, error)
	Subscribe(eventTypes []string, handler EventHandler) error
	Unsubscribe(handler EventHandler) error
}

// RunEvent is a journal entry of one run. Version is its position in the
// run's journal and is assigned by the store on append.
type RunEvent struct {
	Kind    string
	Run     string
	Try     int
	Payload any
	At      time.Time
	Seq     int
}

func (e RunEvent) Type() string         { return e.Kind }
func (e RunEvent) RunID() string        { return e.Run }
func (e RunEvent) Attempt() int         { return e.Try }
func (e RunEvent) Data() any            { return e.Payload }
func (e RunEvent) Timestamp() time.Time { return e.At }
func (e RunEvent) Version() int         { return e.Seq }

// NewRunEvent stamps data for runID; attempt is 0 for run-level events
func NewRunEvent(eventType, runID string, attempt int, data any) RunEvent {
	return RunEvent{
		Kind:    eventType,
		Run:     runID,
		Try:     attempt,
		Payload: data,
		At:      time.Now(),
	}
}

// HandlerFunc adapts a function to an EventHandler accepting every event type
type HandlerFunc func(event Event) error

func (f HandlerFunc) Handle(event Event) error {
	return f(event)
}

func (f HandlerFunc) CanHandle(string) bool {
	return true
}
