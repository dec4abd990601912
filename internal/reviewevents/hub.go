package reviewevents

import (
	"errors"
	"strings"
	"sync"
)

const (
	TypeDeliverySubmitted = "delivery_submitted"
	TypeFeedbackSubmitted = "feedback_submitted"
	TypeStatusChanged     = "status_changed"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

// Event is one observable change on a parent's review timeline.
type Event struct {
	ParentID   string `json:"parent_id"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Type       string `json:"type"`
	Status     string `json:"status,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Version    int    `json:"version,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// Hub fans events out to in-process subscribers, keyed by parent id.
// Each stream keeps a small replay buffer so late subscribers see
// recent history.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []Event
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub      *Hub
	parentID string
	id       uint64
	ch       chan Event
	once     sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(parentID string, event Event) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(parentID)
	if key == "" {
		return
	}
	stream := h.ensureStream(key)

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(parentID string) (*Subscription, []Event, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	key := strings.TrimSpace(parentID)
	if key == "" {
		return nil, nil, errors.New("invalid_parent_id")
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan Event)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]Event(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:      h,
		parentID: key,
		id:       id,
		ch:       ch,
	}, buffer, nil
}

func (h *Hub) ensureStream(parentID string) *stream {
	h.mu.RLock()
	current := h.streams[parentID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[parentID]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan Event)}
		h.streams[parentID] = current
	}
	return current
}

func (h *Hub) unsubscribe(parentID string, id uint64) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(parentID)
	if key == "" {
		return
	}

	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[key]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, key)
	}
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.parentID, s.id)
	})
}
