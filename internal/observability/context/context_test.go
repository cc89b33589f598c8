package context

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  req-1 ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestOwnerRoundTrip(t *testing.T) {
	ctx := WithOwner(context.Background(), "organization", "org_1")
	ownerType, ownerID := OwnerFromContext(ctx)
	if ownerType != "organization" || ownerID != "org_1" {
		t.Fatalf("unexpected owner %q/%q", ownerType, ownerID)
	}
}
