package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const graphMethod = "/" + ServiceName + "/GetGraph"

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func TestAuthInterceptor(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		method string
		md     metadata.MD
		code   codes.Code
	}{
		{"Disabled", "", graphMethod, nil, codes.OK},
		{"HealthExempt", "secret", healthMethod, nil, codes.OK},
		{"MissingMetadata", "secret", graphMethod, nil, codes.Unauthenticated},
		{"MissingHeader", "secret", graphMethod, metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"WrongToken", "secret", graphMethod, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", graphMethod, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", graphMethod, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			resp, err := AuthInterceptor(tc.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if status.Code(err) != tc.code {
				t.Fatalf("expected %v, got %v (%v)", tc.code, status.Code(err), err)
			}
			if tc.code == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	for _, tc := range []struct {
		name   string
		token  string
		path   string
		header string
		code   int
	}{
		{"NoHeader", "secret", "/v1/projects/p/graph", "", http.StatusUnauthorized},
		{"WrongToken", "secret", "/v1/projects/p/graph", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", "/v1/projects/p/graph", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", "/v1/projects/p/graph", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", "/v1/health", "", http.StatusOK},
		{"Disabled", "", "/v1/projects/p/graph", "", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d; body: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicky := func(context.Context, any) (any, error) { panic("boom") }
	req, _ := structpb.NewStruct(map[string]any{"id": "rel-1"})
	resp, err := RecoveryInterceptor(context.Background(), req, &grpc.UnaryServerInfo{FullMethod: graphMethod}, panicky)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response, got %v", resp)
	}
}

func TestRequestAttrs(t *testing.T) {
	req, _ := structpb.NewStruct(map[string]any{"id": "rel-1", "actor": "ada", "latest": true})
	got := requestAttrs(req)
	want := []any{"id", "rel-1", "actor", "ada"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("attr %d = %v, want %v", i, got[i], want[i])
		}
	}
	if attrs := requestAttrs("not a struct"); attrs != nil {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}
