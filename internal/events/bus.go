package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Bus is an in-process Publisher and Subscriber for embedders and
// tests. Topic patterns follow NATS rules: "*" matches one token, a trailing
// ">" matches one or more.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*busSub
	nextID int
	closed bool
}

type busSub struct {
	pattern string
	ch      chan []byte
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*busSub)}
}

// Publish JSON-encodes event and delivers it to every matching subscriber.
// Full subscriber buffers drop the message rather than block the publisher.
func (b *Bus) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bus closed")
	}
	for _, s := range b.subs {
		if !MatchTopic(s.pattern, topic) {
			continue
		}
		select {
		case s.ch <- data:
		default:
		}
	}
	return nil
}

// Subscribe registers pattern and returns a buffered channel of payloads.
func (b *Bus) Subscribe(pattern string) (<-chan []byte, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, fmt.Errorf("bus closed")
	}
	id := b.nextID
	b.nextID++
	s := &busSub{pattern: pattern, ch: make(chan []byte, 64)}
	b.subs[id] = s

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
	return s.ch, cancel, nil
}

// Close closes every subscriber channel. Later publishes fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
	return nil
}

// MatchTopic reports whether topic matches a NATS-style subject pattern.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pt := strings.Split(pattern, ".")
	tt := strings.Split(topic, ".")
	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(tt) > i
		}
		if i >= len(tt) {
			return false
		}
		if p != "*" && p != tt[i] {
			return false
		}
	}
	return len(pt) == len(tt)
}
