package capture

import (
	"sync"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
)

// StateEvent reports a capture source transition (spec §6 "Capture source").
type StateEvent struct {
	SourceName string
	Active     bool
	Reason     string
	At         time.Time
}

// Source is the capture-producer contract (spec §6 "Capture source"):
// video/screen grabbers implement this and publish onto the channels they
// return from Start.
type Source interface {
	GetInfo() Descriptor
	Start() (frames <-chan reducer.Frame, state <-chan StateEvent, err error)
	Stop() error
	SetSignalThreshold(threshold float64)
	SetCropping(left, right, top, bottom int)
	SetHDRToneMappingEnabled(enabled bool)
}

// Descriptor names a capture source for registration/diagnostics.
type Descriptor struct {
	Name string
	Kind string // "video" or "system" per spec.md §6 VIDEOGRABBER/SYSTEMGRABBER; "network" for NetworkImageSource
}

// subscriber is one instance's bounded mailbox (spec §5 "bounded depth = 2
// frames; oldest dropped on overflow").
type subscriber struct {
	ch chan reducer.Frame
}

const subscriberDepth = 2

// Hub fans a single capture source's frames out to every subscribed
// instance without blocking the producer, generalizing the teacher's single
// 60Hz ticker/pixelBuffer ownership (pipeline.go) into a multi-consumer,
// single-producer distribution stage (spec §5).
type Hub struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

// NewHub returns an empty fan-out hub for one capture source.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers a new consumer and returns its read-only frame channel
// plus a token to Unsubscribe with.
func (h *Hub) Subscribe() (<-chan reducer.Frame, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	s := &subscriber{ch: make(chan reducer.Frame, subscriberDepth)}
	h.subs[id] = s
	return s.ch, id
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		close(s.ch)
		delete(h.subs, id)
	}
}

// Publish fans frame out to every subscriber. A subscriber whose mailbox is
// full has its oldest buffered frame evicted first so the new frame is
// never silently dropped while an old one is never delivered (spec §5
// "oldest dropped on overflow").
func (h *Hub) Publish(frame reducer.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		select {
		case s.ch <- frame:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- frame:
			default:
				// subscriber's mailbox was refilled concurrently; drop this
				// frame for this subscriber rather than block the producer.
			}
		}
	}
}

// SubscriberCount reports the number of currently registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
