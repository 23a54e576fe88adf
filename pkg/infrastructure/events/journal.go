package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultJournalCapacity = 10000

// Journal keeps the most recent events in memory, numbers them per stream and
// fans them out to subscribers. Handlers run on their own goroutines.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	log      []Event
	dropped  int
	versions map[string]int
	subs     map[int]subscription
	nextSub  int
	inflight sync.WaitGroup
	logger   *zap.Logger
}

type subscription struct {
	types   map[string]bool
	handler Handler
}

// JournalOption configures a Journal
type JournalOption func(*Journal)

// WithCapacity bounds how many events are retained
func WithCapacity(n int) JournalOption {
	return func(j *Journal) {
		if n > 0 {
			j.capacity = n
		}
	}
}

func NewJournal(logger *zap.Logger, opts ...JournalOption) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Journal{
		capacity: defaultJournalCapacity,
		versions: make(map[string]int),
		subs:     make(map[int]subscription),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var _ Publisher = (*Journal)(nil)

// Publish records event with the next version of its stream
func (j *Journal) Publish(_ context.Context, event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	stream := event.StreamID()
	j.versions[stream]++
	recorded := entry{
		kind:    event.Type(),
		stream:  stream,
		data:    event.Data(),
		at:      event.Timestamp(),
		version: j.versions[stream],
	}

	j.log = append(j.log, recorded)
	if over := len(j.log) - j.capacity; over > 0 {
		j.log = append(j.log[:0:0], j.log[over:]...)
		j.dropped += over
	}

	for _, sub := range j.subs {
		if len(sub.types) > 0 && !sub.types[recorded.kind] {
			continue
		}
		j.inflight.Add(1)
		go j.deliver(sub.handler, recorded)
	}
	return nil
}

func (j *Journal) deliver(h Handler, event Event) {
	defer j.inflight.Done()
	if err := h.Handle(event); err != nil {
		j.logger.Warn("event handler failed",
			zap.String("event_type", event.Type()),
			zap.String("stream", event.StreamID()),
			zap.Error(err))
	}
}

// Subscribe registers h for the given event types, or for every type when none
// are given. The returned func removes the subscription.
func (j *Journal) Subscribe(h Handler, eventTypes ...string) (unsubscribe func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	id := j.nextSub
	j.nextSub++
	j.subs[id] = subscription{types: types, handler: h}

	return func() {
		j.mu.Lock()
		delete(j.subs, id)
		j.mu.Unlock()
	}
}

// Stream returns the retained events of one stream from version onwards
func (j *Journal) Stream(streamID string, fromVersion int) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Event
	for _, e := range j.log {
		if e.StreamID() == streamID && e.Version() >= fromVersion {
			out = append(out, e)
		}
	}
	return out
}

// Since returns the events recorded at or after the absolute position pos.
// Positions count every event ever published, including trimmed ones.
func (j *Journal) Since(pos int) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	start := pos - j.dropped
	if start < 0 {
		start = 0
	}
	if start >= len(j.log) {
		return nil
	}
	return append([]Event(nil), j.log[start:]...)
}

// Wait blocks until every handler started so far has returned
func (j *Journal) Wait() {
	j.inflight.Wait()
}
