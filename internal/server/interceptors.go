package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// requestAttrs picks the identifying fields of a relationship service
// request for log lines.
func requestAttrs(req any) []any {
	in, ok := req.(*structpb.Struct)
	if !ok {
		return nil
	}
	var attrs []any
	for _, key := range []string{"id", "project_id", "actor"} {
		if v := in.GetFields()[key].GetStringValue(); v != "" {
			attrs = append(attrs, key, v)
		}
	}
	return attrs
}

// LoggingInterceptor logs every unary call with its duration and the
// relationship or project it addressed. Failures log at error level.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	attrs := append([]any{"method", info.FullMethod, "duration", time.Since(start)}, requestAttrs(req)...)
	if err != nil {
		attrs = append(attrs, "code", status.Code(err).String(), "error", err)
		slog.Error("rpc failed", attrs...)
		return resp, err
	}
	slog.Debug("rpc completed", attrs...)
	return resp, nil
}

// RecoveryInterceptor turns a panic in a handler into codes.Internal and
// logs the stack.
func RecoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		attrs := append([]any{
			"method", info.FullMethod,
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()),
		}, requestAttrs(req)...)
		slog.Error("panic recovered in gRPC handler", attrs...)
		resp, err = nil, status.Error(codes.Internal, "internal server error")
	}()
	return handler(ctx, req)
}

// AuthInterceptor requires "authorization: Bearer <token>" metadata on every
// call except Health. An empty token disables the check.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if token == "" || info.FullMethod == healthMethod {
			return handler(ctx, req)
		}
		if msg := checkMetadataBearer(ctx, token); msg != "" {
			return nil, status.Error(codes.Unauthenticated, msg)
		}
		return handler(ctx, req)
	}
}

func checkMetadataBearer(ctx context.Context, token string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "missing metadata"
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "missing authorization header"
	}
	return checkBearer(vals[0], token)
}

// AuthMiddleware applies the same bearer check to HTTP requests. GET
// /v1/health stays open so that health checks need no credentials.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		if msg := checkBearer(auth, token); msg != "" {
			slog.Warn("rejected HTTP request", "path", r.URL.Path, "reason", msg)
			writeError(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearer compares a "Bearer <token>" header value in constant time and
// returns the rejection message, or "" when the token matches.
func checkBearer(header, token string) string {
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "invalid authorization scheme"
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return "invalid token"
	}
	return ""
}
