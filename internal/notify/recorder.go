package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Event is one recorded publish.
type Event struct {
	Topic      string
	Recipients []uuid.UUID
	Payload    any
}

// Recorder is a Publisher that captures events for test assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error // returned from Publish when set
}

func (r *Recorder) Publish(_ context.Context, topic string, recipients []uuid.UUID, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Recipients: recipients, Payload: payload})
	return r.Err
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByTopic filters recorded events by topic.
func (r *Recorder) ByTopic(topic string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}
