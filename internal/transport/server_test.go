package transport

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_HealthFollowsServingState(t *testing.T) {
	srv, err := StartServer(0)
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	go func() { _ = srv.Serve() }()
	defer srv.Stop()

	target := fmt.Sprintf("127.0.0.1:%d", srv.Addr().(*net.TCPAddr).Port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := Probe(ctx, target)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("want NOT_SERVING before start, got %v", st)
	}

	srv.SetServing(true)
	st, err = Probe(ctx, target)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("want SERVING, got %v", st)
	}
}
