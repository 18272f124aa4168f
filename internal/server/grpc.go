package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct values carrying the same JSON shapes
// as the HTTP API.
const ServiceName = "storyweb.v1.RelationshipService"

const healthMethod = "/" + ServiceName + "/Health"

// RelationshipServiceServer is the gRPC surface of the relationship service.
type RelationshipServiceServer interface {
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOverview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMatrix(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRelationship(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(RelationshipServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryStructHandler(method string, call structCall) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(RelationshipServiceServer)
		if interceptor == nil {
			return call(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(svc, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RelationshipServiceDesc describes the service for grpc.Server.RegisterService.
var RelationshipServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelationshipServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unaryStructHandler("Health", RelationshipServiceServer.Health)},
		{MethodName: "GetGraph", Handler: unaryStructHandler("GetGraph", RelationshipServiceServer.GetGraph)},
		{MethodName: "GetOverview", Handler: unaryStructHandler("GetOverview", RelationshipServiceServer.GetOverview)},
		{MethodName: "GetMatrix", Handler: unaryStructHandler("GetMatrix", RelationshipServiceServer.GetMatrix)},
		{MethodName: "GetRelationship", Handler: unaryStructHandler("GetRelationship", RelationshipServiceServer.GetRelationship)},
		{MethodName: "SaveSnapshot", Handler: unaryStructHandler("SaveSnapshot", RelationshipServiceServer.SaveSnapshot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storyweb/v1/relationship.proto",
}

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the relationship service.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)
	srv.RegisterService(&RelationshipServiceDesc, &grpcService{s: s})
	return srv
}

// grpcService adapts Server to RelationshipServiceServer.
type grpcService struct {
	s *Server
}

var _ RelationshipServiceServer = (*grpcService)(nil)

func (g *grpcService) Health(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

func (g *grpcService) GetGraph(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pid, err := requiredString(req, "project_id")
	if err != nil {
		return nil, err
	}
	graph, err := g.s.Graph(ctx, pid, req.GetFields()["latest"].GetBoolValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(graph)
}

func (g *grpcService) GetOverview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pid, err := requiredString(req, "project_id")
	if err != nil {
		return nil, err
	}
	width, height := float64(defaultOverviewWidth), float64(defaultOverviewHeight)
	if v, ok := req.GetFields()["width"]; ok {
		width = v.GetNumberValue()
	}
	if v, ok := req.GetFields()["height"]; ok {
		height = v.GetNumberValue()
	}
	l, err := g.s.Overview(ctx, pid, width, height)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(l)
}

func (g *grpcService) GetMatrix(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pid, err := requiredString(req, "project_id")
	if err != nil {
		return nil, err
	}
	m, err := g.s.Matrix(ctx, pid)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(m)
}

func (g *grpcService) GetRelationship(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}
	rel, err := g.s.GetRelationship(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(rel)
}

func (g *grpcService) SaveSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}
	raw, ok := req.GetFields()["snapshot"]
	if !ok || raw.GetStructValue() == nil {
		return nil, status.Error(codes.InvalidArgument, "snapshot is required")
	}
	var snap model.DiagramSnapshot
	if err := fromValue(raw, &snap); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid snapshot: %v", err)
	}
	rel, err := g.s.SaveSnapshot(ctx, id, req.GetFields()["actor"].GetStringValue(), snap)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(rel)
}

func requiredString(req *structpb.Struct, key string) (string, error) {
	v := req.GetFields()[key].GetStringValue()
	if v == "" {
		return "", status.Error(codes.InvalidArgument, key+" is required")
	}
	return v, nil
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case isInputError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts v through its JSON form into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromValue decodes a Struct value into v through JSON.
func fromValue(val *structpb.Value, v any) error {
	data, err := val.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return json.Unmarshal(data, v)
}
