package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/events"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store/memory"
)

// sseEventParsed represents a single parsed SSE event from the stream.
type sseEventParsed struct {
	ID    string
	Event string
	Data  string
}

// sseReader reads SSE events from an HTTP response body using a bufio.Scanner.
// It sends parsed events to the returned channel and stops when the context is cancelled
// or the body is closed.
func sseReader(ctx context.Context, resp *http.Response) <-chan sseEventParsed {
	ch := make(chan sseEventParsed, 32)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEventParsed
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "id:"):
				current.ID = strings.TrimPrefix(line, "id:")
			case strings.HasPrefix(line, "event:"):
				current.Event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				current.Data = strings.TrimPrefix(line, "data:")
			case line == "":
				// Empty line marks end of SSE event block.
				if current.Event != "" || current.Data != "" {
					ch <- current
					current = sseEventParsed{}
				}
			}
		}
	}()
	return ch
}

// waitForEvent reads from the SSE event channel until an event with the given
// topic is received, or the timeout expires.
func waitForEvent(t *testing.T, ch <-chan sseEventParsed, topic string, timeout time.Duration) sseEventParsed {
	t.Helper()
	timer := time.After(timeout)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("SSE channel closed before receiving event %q", topic)
			}
			if evt.Event == topic {
				return evt
			}
			// Keep reading; may receive other events first.
		case <-timer:
			t.Fatalf("timed out waiting for SSE event %q", topic)
		}
	}
}

// startSSEClient opens an SSE connection to the test server and returns a channel
// of parsed events plus a cancel function. The caller must call cancel when done.
func startSSEClient(t *testing.T, serverURL string, queryParams string) (<-chan sseEventParsed, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	url := serverURL + "/v1/events/stream"
	if queryParams != "" {
		url += "?" + queryParams
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		cancel()
		t.Fatalf("failed to create SSE request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("failed to connect to SSE stream: %v", err)
	}

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		resp.Body.Close()
		cancel()
		t.Fatalf("expected Content-Type=text/event-stream, got %q", resp.Header.Get("Content-Type"))
	}

	ch := sseReader(ctx, resp)

	// Return a wrapped cancel that also closes the body.
	cleanup := func() {
		cancel()
		resp.Body.Close()
	}

	return ch, cleanup
}

// startIntegrationServer creates a test server with a real TCP listener for
// integration tests, returning the server URL and the backing store.
func startIntegrationServer(t *testing.T) (string, *memory.Store, func()) {
	t.Helper()
	_, ms, handler := newTestServer()
	seedProject(t, ms)
	ts := httptest.NewServer(handler)
	return ts.URL, ms, ts.Close
}

// doHTTPJSON performs an HTTP request with an optional JSON body against a real server URL.
func doHTTPJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		b, _ := json.Marshal(body)
		req, err = http.NewRequest(method, url, strings.NewReader(string(b)))
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HTTP request failed: %v", err)
	}
	return resp
}

// requireHTTPStatus asserts the response has the expected status code.
func requireHTTPStatus(t *testing.T, resp *http.Response, code int) {
	t.Helper()
	if resp.StatusCode != code {
		t.Fatalf("expected status %d, got %d", code, resp.StatusCode)
	}
}

// decodeHTTPJSON decodes the response body JSON into v.
func decodeHTTPJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// decodeChange parses the data line of a relationship event.
func decodeChange(t *testing.T, evt sseEventParsed) events.RelationshipChanged {
	t.Helper()
	var rc events.RelationshipChanged
	if err := json.Unmarshal([]byte(evt.Data), &rc); err != nil {
		t.Fatalf("failed to parse SSE data: %v", err)
	}
	return rc
}

// --- Integration Tests ---

func TestSSEIntegration_CreateRelationshipTriggersEvent(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents, sseCancel := startSSEClient(t, serverURL, "")
	defer sseCancel()

	// Give the SSE subscription time to register.
	time.Sleep(50 * time.Millisecond)

	resp := doHTTPJSON(t, "POST", serverURL+"/v1/projects/p/relationships", map[string]any{"name": "Harbor web"})
	requireHTTPStatus(t, resp, 201)
	var created model.Relationship
	decodeHTTPJSON(t, resp, &created)

	evt := waitForEvent(t, sseEvents, events.TopicRelationshipCreated, 2*time.Second)
	rc := decodeChange(t, evt)
	if rc.RelationshipID != created.ID || rc.ProjectID != "p" {
		t.Fatalf("unexpected event payload: %+v", rc)
	}
	if evt.ID == "" {
		t.Fatal("expected SSE event to have a non-empty ID")
	}
}

func TestSSEIntegration_SaveSnapshotTriggersEvent(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents, sseCancel := startSSEClient(t, serverURL, "")
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	resp := doHTTPJSON(t, "PUT", serverURL+"/v1/relationships/rel-1/snapshot", model.DiagramSnapshot{
		Nodes:       []model.DiagramNode{},
		Connections: []model.DiagramConnection{},
	})
	requireHTTPStatus(t, resp, 200)
	resp.Body.Close()

	evt := waitForEvent(t, sseEvents, events.TopicRelationshipUpdated, 2*time.Second)
	if rc := decodeChange(t, evt); rc.RelationshipID != "rel-1" {
		t.Fatalf("unexpected event payload: %+v", rc)
	}
}

func TestSSEIntegration_FailedSaveEmitsNothing(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents, sseCancel := startSSEClient(t, serverURL, "")
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	resp := doHTTPJSON(t, "PUT", serverURL+"/v1/relationships/rel-1/snapshot", map[string]any{
		"nodes": []map[string]any{{"id": "n1", "width": -1, "height": 10}},
	})
	requireHTTPStatus(t, resp, 400)
	resp.Body.Close()

	select {
	case evt := <-sseEvents:
		t.Fatalf("unexpected event after rejected save: %+v", evt)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSSEIntegration_TopicFilterOnlyReceivesMatching(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents, sseCancel := startSSEClient(t, serverURL, "topics="+events.TopicRelationshipCreated)
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	// An update (not matching) followed by a create (matching).
	resp := doHTTPJSON(t, "PUT", serverURL+"/v1/relationships/rel-1/snapshot", map[string]any{})
	requireHTTPStatus(t, resp, 200)
	resp.Body.Close()
	resp = doHTTPJSON(t, "POST", serverURL+"/v1/projects/p/relationships", map[string]any{"name": "Second"})
	requireHTTPStatus(t, resp, 201)
	resp.Body.Close()

	evt := waitForEvent(t, sseEvents, events.TopicRelationshipCreated, 2*time.Second)
	if rc := decodeChange(t, evt); rc.RelationshipID == "rel-1" {
		t.Fatalf("received update for rel-1 through a created-only filter")
	}

	select {
	case evt := <-sseEvents:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSEIntegration_ProjectFilter(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents, sseCancel := startSSEClient(t, serverURL, "project=q")
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	resp := doHTTPJSON(t, "POST", serverURL+"/v1/projects/p/relationships", map[string]any{"name": "In p"})
	requireHTTPStatus(t, resp, 201)
	resp.Body.Close()
	resp = doHTTPJSON(t, "POST", serverURL+"/v1/projects/q/relationships", map[string]any{"name": "In q"})
	requireHTTPStatus(t, resp, 201)
	resp.Body.Close()

	evt := waitForEvent(t, sseEvents, events.TopicRelationshipCreated, 2*time.Second)
	if rc := decodeChange(t, evt); rc.ProjectID != "q" {
		t.Fatalf("expected only project q events, got %+v", rc)
	}
}

func TestSSEIntegration_LastEventIDReplay(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	for _, name := range []string{"one", "two", "three"} {
		resp := doHTTPJSON(t, "POST", serverURL+"/v1/projects/p/relationships", map[string]any{"name": name})
		requireHTTPStatus(t, resp, 201)
		resp.Body.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", serverURL+"/v1/events/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect to SSE stream: %v", err)
	}
	defer resp.Body.Close()

	ch := sseReader(ctx, resp)
	for _, want := range []string{"2", "3"} {
		evt := waitForEvent(t, ch, events.TopicRelationshipCreated, 2*time.Second)
		if evt.ID != want {
			t.Fatalf("expected replayed event id %s, got %s", want, evt.ID)
		}
	}
}
