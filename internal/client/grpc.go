package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/storyweb/internal/graphsvc"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
)

// serviceName must match the server's registered service.
const serviceName = "storyweb.v1.RelationshipService"

// GRPCClient implements GraphClient using the gRPC transport. Requests and
// responses are google.protobuf.Struct values in the HTTP JSON shapes.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
	actor string
}

var _ GraphClient = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a bearer token on every call.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) SetActor(actor string) { c.actor = actor }

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.invoke(ctx, "Health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *GRPCClient) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	var rel model.Relationship
	if err := c.invoke(ctx, "GetRelationship", map[string]any{"id": id}, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *GRPCClient) SaveSnapshot(ctx context.Context, id string, snap model.DiagramSnapshot) (*model.Relationship, error) {
	raw, err := toMap(snap)
	if err != nil {
		return nil, err
	}
	req := map[string]any{"id": id, "snapshot": raw}
	if c.actor != "" {
		req["actor"] = c.actor
	}
	var rel model.Relationship
	if err := c.invoke(ctx, "SaveSnapshot", req, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *GRPCClient) GetGraph(ctx context.Context, projectID string, latest bool) (*graphsvc.Graph, error) {
	var g graphsvc.Graph
	if err := c.invoke(ctx, "GetGraph", map[string]any{"project_id": projectID, "latest": latest}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *GRPCClient) GetOverview(ctx context.Context, projectID string, width, height float64) (*relgraph.Layout, error) {
	req := map[string]any{"project_id": projectID}
	if width > 0 {
		req["width"] = width
	}
	if height > 0 {
		req["height"] = height
	}
	var l relgraph.Layout
	if err := c.invoke(ctx, "GetOverview", req, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *GRPCClient) GetMatrix(ctx context.Context, projectID string) (*relgraph.Matrix, error) {
	var m relgraph.Matrix
	if err := c.invoke(ctx, "GetMatrix", map[string]any{"project_id": projectID}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// invoke calls one unary method, converting req and the response through
// their JSON forms.
func (c *GRPCClient) invoke(ctx context.Context, method string, req map[string]any, result any) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return err
	}
	data, err := out.MarshalJSON()
	if err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

// toMap converts v to the generic form structpb accepts.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
