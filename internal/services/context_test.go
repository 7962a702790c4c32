package services_test

import (
	"context"
	"testing"

	"clipshelf/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithClipID(ctx, 42)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ClipIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected clip id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
	if _, ok := services.ClipIDFromContext(ctx); ok {
		t.Fatal("expected no clip id value")
	}
}
