package app

import (
	"sync"

	"classquiz-service/internal/domain"
)

// DefaultEventBuffer is the per-subscriber queue length.
const DefaultEventBuffer = 16

// Events fans committed mutations out to in-process subscribers. A slow
// subscriber loses its oldest queued event rather than blocking publishers.
type Events struct {
	buffer int

	mu   sync.Mutex
	subs map[chan domain.Event]string
}

func NewEvents(buffer int) *Events {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Events{
		buffer: buffer,
		subs:   make(map[chan domain.Event]string),
	}
}

// Subscribe returns a channel of events for classroomID, or for every
// classroom when classroomID is empty. The caller must invoke cancel.
func (e *Events) Subscribe(classroomID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, e.buffer)

	e.mu.Lock()
	e.subs[ch] = classroomID
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Events) Publish(ev domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch, filter := range e.subs {
		if filter != "" && filter != ev.ClassroomID {
			continue
		}
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports the number of open subscriptions.
func (e *Events) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
