package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/events"
)

// expectEvent waits for one event on the client channel.
func expectEvent(t *testing.T, c *sseClient) *sseEvent {
	t.Helper()
	select {
	case evt := <-c.ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// expectNoEvent asserts the client channel stays empty for a short while.
func expectNoEvent(t *testing.T, c *sseClient) {
	t.Helper()
	select {
	case evt := <-c.ch:
		t.Fatalf("unexpected event: topic=%q project=%q", evt.Topic, evt.ProjectID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe(nil, "")
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicRelationshipCreated, "p", []byte(`{"relationship_id":"r1"}`))

	evt := expectEvent(t, client)
	if evt.ID != 1 || evt.Topic != events.TopicRelationshipCreated || evt.ProjectID != "p" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if string(evt.Data) != `{"relationship_id":"r1"}` {
		t.Fatalf("unexpected data %q", evt.Data)
	}
}

func TestSSEClient_Matches(t *testing.T) {
	for _, tc := range []struct {
		name    string
		topics  []string
		project string
		evt     sseEvent
		want    bool
	}{
		{"NoFilters", nil, "", sseEvent{Topic: events.TopicRelationshipUpdated, ProjectID: "p"}, true},
		{"ExactTopic", []string{events.TopicRelationshipCreated}, "", sseEvent{Topic: events.TopicRelationshipCreated}, true},
		{"OtherTopic", []string{events.TopicRelationshipCreated}, "", sseEvent{Topic: events.TopicRelationshipUpdated}, false},
		{"Wildcard", []string{"storyweb.relationship.*"}, "", sseEvent{Topic: events.TopicRelationshipUpdated}, true},
		{"TailWildcard", []string{events.TopicAll}, "", sseEvent{Topic: events.TopicRelationshipCreated}, true},
		{"AnyOfTopics", []string{"other.*", events.TopicRelationshipUpdated}, "", sseEvent{Topic: events.TopicRelationshipUpdated}, true},
		{"SameProject", nil, "p", sseEvent{Topic: events.TopicRelationshipCreated, ProjectID: "p"}, true},
		{"OtherProject", nil, "p", sseEvent{Topic: events.TopicRelationshipCreated, ProjectID: "q"}, false},
		{"ProjectAndTopic", []string{events.TopicRelationshipCreated}, "p", sseEvent{Topic: events.TopicRelationshipUpdated, ProjectID: "p"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &sseClient{topics: tc.topics, projectID: tc.project}
			if got := c.matches(&tc.evt); got != tc.want {
				t.Fatalf("matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSSEHub_Filtering(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe([]string{events.TopicRelationshipUpdated}, "p")
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicRelationshipCreated, "p", []byte(`{}`))
	hub.broadcast(events.TopicRelationshipUpdated, "q", []byte(`{}`))
	hub.broadcast(events.TopicRelationshipUpdated, "p", []byte(`{}`))

	if evt := expectEvent(t, client); evt.ID != 3 {
		t.Fatalf("expected only event 3, got %+v", evt)
	}
	expectNoEvent(t, client)
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe(nil, "")
	hub.unsubscribe(client)

	hub.broadcast(events.TopicRelationshipCreated, "p", []byte(`{}`))
	expectNoEvent(t, client)
}

func TestSSEHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := newSSEHub()
	client := hub.subscribe(nil, "")
	defer hub.unsubscribe(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range cap(client.ch) + 10 {
			hub.broadcast(events.TopicRelationshipUpdated, "p", []byte(`{}`))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	if len(client.ch) != cap(client.ch) {
		t.Fatalf("expected a full buffer, got %d", len(client.ch))
	}
}

func TestSSEHub_EventsSince(t *testing.T) {
	hub := newSSEHub()
	if evts := hub.eventsSince(0); len(evts) != 0 {
		t.Fatalf("expected no events, got %d", len(evts))
	}

	for range 5 {
		hub.broadcast(events.TopicRelationshipUpdated, "p", []byte(`{}`))
	}
	evts := hub.eventsSince(2)
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].ID != 3 || evts[2].ID != 5 {
		t.Fatalf("expected IDs 3..5, got %d..%d", evts[0].ID, evts[2].ID)
	}
}

func TestSSEHub_RingBufferWrap(t *testing.T) {
	hub := newSSEHub()
	for range sseRingBufferSize + 100 {
		hub.broadcast(events.TopicRelationshipUpdated, "p", []byte(`{}`))
	}

	evts := hub.eventsSince(0)
	if len(evts) != sseRingBufferSize {
		t.Fatalf("expected %d events, got %d", sseRingBufferSize, len(evts))
	}
	if evts[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", evts[0].ID)
	}
}

type failingPublisher struct{ closed bool }

func (p *failingPublisher) Publish(context.Context, string, any) error {
	return errors.New("bus down")
}

func (p *failingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestHubPublisher(t *testing.T) {
	hub := newSSEHub()
	next := &failingPublisher{}
	pub := &hubPublisher{next: next, hub: hub}
	client := hub.subscribe(nil, "p")
	defer hub.unsubscribe(client)

	err := pub.Publish(context.Background(), events.TopicRelationshipUpdated,
		events.RelationshipChanged{RelationshipID: "r1", ProjectID: "p"})
	if err == nil {
		t.Fatal("expected the bus error to be returned")
	}

	// The SSE broadcast still happens and carries the project.
	evt := expectEvent(t, client)
	if evt.ProjectID != "p" || !strings.Contains(string(evt.Data), `"relationship_id":"r1"`) {
		t.Fatalf("unexpected event: %+v", evt)
	}

	if err := pub.Close(); err != nil || !next.closed {
		t.Fatalf("Close not forwarded: err=%v closed=%v", err, next.closed)
	}
}

// TestSSEEventFormat verifies the exact SSE wire format, including replay.
func TestSSEEventFormat(t *testing.T) {
	srv, _, handler := newTestServer()
	srv.sseHub.broadcast(events.TopicRelationshipCreated, "p", []byte(`{"n":1}`))
	srv.sseHub.broadcast(events.TopicRelationshipUpdated, "p", []byte(`{"n":2}`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req.Header.Set("Last-Event-ID", "1")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	want := "id:2\nevent:" + events.TopicRelationshipUpdated + "\ndata:{\"n\":2}\n\n"
	if body := rec.Body.String(); body != want {
		t.Fatalf("unexpected body:\n%q\nwant:\n%q", body, want)
	}
}
