package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/graphsvc"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/presence"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
)

// actorHeader carries the editor name on mutating requests.
const actorHeader = "X-Storyweb-Actor"

// HTTPClient implements Client using the storyweb HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// SetActor sets the X-Storyweb-Actor header sent with every request.
func (c *HTTPClient) SetActor(actor string) { c.actor = actor }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- World elements ---

func (c *HTTPClient) ListElements(ctx context.Context, projectID string, categories ...string) ([]*model.WorldElement, error) {
	path := projectPath(projectID, "elements")
	if len(categories) > 0 {
		path += "?" + url.Values{"category": {strings.Join(categories, ",")}}.Encode()
	}
	var els []*model.WorldElement
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &els); err != nil {
		return nil, err
	}
	return els, nil
}

func (c *HTTPClient) GetElement(ctx context.Context, id string) (*model.WorldElement, error) {
	var el model.WorldElement
	if err := c.doJSON(ctx, http.MethodGet, "/v1/elements/"+url.PathEscape(id), nil, &el); err != nil {
		return nil, err
	}
	return &el, nil
}

func (c *HTTPClient) CreateElement(ctx context.Context, projectID string, req *CreateElementRequest) (*model.WorldElement, error) {
	var el model.WorldElement
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID, "elements"), req, &el); err != nil {
		return nil, err
	}
	return &el, nil
}

// --- Direct relationship records ---

func (c *HTTPClient) ListDirectRelationships(ctx context.Context, projectID string) ([]model.DirectRelationshipRecord, error) {
	var recs []model.DirectRelationshipRecord
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "direct-relationships"), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *HTTPClient) CreateDirectRelationship(ctx context.Context, projectID string, rec *model.DirectRelationshipRecord) (*model.DirectRelationshipRecord, error) {
	var out model.DirectRelationshipRecord
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID, "direct-relationships"), rec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Relationship diagrams ---

func (c *HTTPClient) ListRelationships(ctx context.Context, projectID string) ([]*model.Relationship, error) {
	var rels []*model.Relationship
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "relationships"), nil, &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

func (c *HTTPClient) CreateRelationship(ctx context.Context, projectID string, req *CreateRelationshipRequest) (*model.Relationship, error) {
	var rel model.Relationship
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID, "relationships"), req, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *HTTPClient) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	var rel model.Relationship
	if err := c.doJSON(ctx, http.MethodGet, relationshipPath(id, ""), nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *HTTPClient) DeleteRelationship(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, relationshipPath(id, ""), nil, nil)
}

func (c *HTTPClient) SaveSnapshot(ctx context.Context, id string, snap model.DiagramSnapshot) (*model.Relationship, error) {
	var rel model.Relationship
	if err := c.doJSON(ctx, http.MethodPut, relationshipPath(id, "snapshot"), snap, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *HTTPClient) GetRoutes(ctx context.Context, id string) ([]diagram.Route, error) {
	var routes []diagram.Route
	if err := c.doJSON(ctx, http.MethodGet, relationshipPath(id, "routes"), nil, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, id string) ([]*model.Event, error) {
	var evs []*model.Event
	if err := c.doJSON(ctx, http.MethodGet, relationshipPath(id, "events"), nil, &evs); err != nil {
		return nil, err
	}
	return evs, nil
}

func (c *HTTPClient) GetEditors(ctx context.Context, id string) ([]presence.Entry, error) {
	var entries []presence.Entry
	if err := c.doJSON(ctx, http.MethodGet, relationshipPath(id, "editors"), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) GetPresence(ctx context.Context, projectID string) ([]presence.Entry, error) {
	path := "/v1/presence"
	if projectID != "" {
		path += "?" + url.Values{"project": {projectID}}.Encode()
	}
	var entries []presence.Entry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) RenderRelationship(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, relationshipPath(id, "svg"), nil)
}

// --- Project graph ---

func (c *HTTPClient) GetGraph(ctx context.Context, projectID string, latest bool) (*graphsvc.Graph, error) {
	path := projectPath(projectID, "graph")
	if latest {
		path += "?latest=true"
	}
	var g graphsvc.Graph
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) GetOverview(ctx context.Context, projectID string, width, height float64) (*relgraph.Layout, error) {
	var l relgraph.Layout
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "overview")+sizeQuery(width, height), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *HTTPClient) RenderOverview(ctx context.Context, projectID string, width, height float64) ([]byte, error) {
	return c.do(ctx, http.MethodGet, projectPath(projectID, "overview.svg")+sizeQuery(width, height), nil)
}

func (c *HTTPClient) GetMatrix(ctx context.Context, projectID string) (*relgraph.Matrix, error) {
	var m relgraph.Matrix
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "matrix"), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// --- Event stream ---

// StreamEvents opens GET /v1/events/stream and delivers parsed events until
// ctx is cancelled or the server closes the stream. The channel is closed
// when the stream ends.
func (c *HTTPClient) StreamEvents(ctx context.Context, projectID string, topics ...string) (<-chan StreamEvent, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project", projectID)
	}
	if len(topics) > 0 {
		q.Set("topics", strings.Join(topics, ","))
	}
	path := "/v1/events/stream"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, body)
	}

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		var cur StreamEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "id:"):
				cur.ID = strings.TrimPrefix(line, "id:")
			case strings.HasPrefix(line, "event:"):
				cur.Topic = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				cur.Data = []byte(strings.TrimPrefix(line, "data:"))
			case line == "":
				if cur.Topic == "" && cur.Data == nil {
					continue
				}
				select {
				case ch <- cur:
				case <-ctx.Done():
					return
				}
				cur = StreamEvent{}
			}
		}
	}()
	return ch, nil
}

// --- internal helpers ---

func projectPath(projectID, resource string) string {
	return "/v1/projects/" + url.PathEscape(projectID) + "/" + resource
}

func relationshipPath(id, resource string) string {
	p := "/v1/relationships/" + url.PathEscape(id)
	if resource != "" {
		p += "/" + resource
	}
	return p
}

// sizeQuery encodes a non-default overview size.
func sizeQuery(width, height float64) string {
	q := url.Values{}
	if width > 0 {
		q.Set("width", strconv.FormatFloat(width, 'f', -1, 64))
	}
	if height > 0 {
		q.Set("height", strconv.FormatFloat(height, 'f', -1, 64))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiError(code int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: code, Message: errResp.Error}
	}
	return &APIError{StatusCode: code, Message: string(body)}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(actorHeader, c.actor)
	}
	return req, nil
}

// do performs an HTTP request with an optional JSON body and returns the raw
// response body. Status codes of 400 and above become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apiError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
