package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestEnsureTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "from-ctx")

	if got := EnsureTraceID(ctx, " explicit "); got != "explicit" {
		t.Errorf("explicit id = %q", got)
	}
	if got := EnsureTraceID(ctx, ""); got != "from-ctx" {
		t.Errorf("context id = %q", got)
	}

	got := EnsureTraceID(context.Background(), "")
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("generated id %q is not a uuid: %v", got, err)
	}
}

func TestActorFromContext(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != "" {
		t.Errorf("empty context actor = %q", got)
	}
	ctx := WithActorID(context.Background(), "ops@example.com")
	if got := ActorFromContext(ctx); got != "ops@example.com" {
		t.Errorf("actor = %q", got)
	}
}
