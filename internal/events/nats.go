package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// HeaderProject carries the project id of a relationship change so that
// subscribers can route messages without decoding the payload.
const HeaderProject = "Storyweb-Project"

// dropLogEvery throttles the slow-subscriber warning.
const dropLogEvery = 100

func connectNATS(url, name string, opts []nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes relationship events as JSON on NATS subjects named
// after the topic.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url. The connection reconnects forever.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connectNATS(url, "storyweb-publisher", opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends event on topic. RelationshipChanged payloads also set the
// project header.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if pid := projectOf(event); pid != "" {
		msg.Header.Set(HeaderProject, pid)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func projectOf(event any) string {
	switch e := event.(type) {
	case RelationshipChanged:
		return e.ProjectID
	case *RelationshipChanged:
		if e != nil {
			return e.ProjectID
		}
	}
	return ""
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber delivers raw payloads from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with automatic reconnection. Extra options such
// as disconnect and reconnect handlers are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connectNATS(url, "storyweb-watcher", opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// natsFeed bridges one NATS subscription to a buffered channel. Messages
// that arrive while the buffer is full are dropped and counted.
type natsFeed struct {
	topic string
	ch    chan []byte
	sub   *nats.Subscription

	mu      sync.Mutex
	closed  bool
	dropped int
	once    sync.Once
}

func (f *natsFeed) deliver(msg *nats.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- msg.Data:
	default:
		f.dropped++
		if f.dropped%dropLogEvery == 1 {
			slog.Warn("events: subscriber buffer full, dropping messages",
				"topic", f.topic, "dropped", f.dropped)
		}
	}
}

func (f *natsFeed) cancel() {
	f.once.Do(func() {
		if f.sub != nil {
			_ = f.sub.Unsubscribe()
		}
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		for {
			select {
			case <-f.ch:
			default:
				close(f.ch)
				return
			}
		}
	})
}

// Subscribe returns a channel of payloads for topic, which may use NATS
// wildcards such as TopicAll. The returned cancel func unsubscribes and
// closes the channel.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	f := &natsFeed{topic: topic, ch: make(chan []byte, 64)}

	sub, err := s.conn.Subscribe(topic, f.deliver)
	if err != nil {
		close(f.ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	f.sub = sub
	// The subscription must reach the server before we return, otherwise
	// publishes from other connections can be missed.
	if err := s.conn.Flush(); err != nil {
		f.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return f.ch, f.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
