package events

import (
	"context"
	"time"
)

// Event describes one change to a domain object. Events are immutable.
type Event interface {
	Type() string
	StreamID() string
	Data() any
	Timestamp() time.Time
	Version() int
}

// Publisher accepts domain events after the change they describe is stored
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler reacts to journaled events
type Handler interface {
	Handle(event Event) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(Event) error

func (f HandlerFunc) Handle(event Event) error { return f(event) }

// entry is the concrete event value; version is assigned by the journal
type entry struct {
	kind    string
	stream  string
	data    any
	at      time.Time
	version int
}

func (e entry) Type() string         { return e.kind }
func (e entry) StreamID() string     { return e.stream }
func (e entry) Data() any            { return e.data }
func (e entry) Timestamp() time.Time { return e.at }
func (e entry) Version() int         { return e.version }

// NewEvent creates an unjournaled event stamped with the current time
func NewEvent(eventType, streamID string, data any) Event {
	return entry{kind: eventType, stream: streamID, data: data, at: time.Now().UTC(), version: 1}
}
