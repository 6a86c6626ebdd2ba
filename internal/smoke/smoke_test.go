package smoke

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

func TestNoopRunner_AlwaysSucceeds(t *testing.T) {
	if err := (NoopRunner{}).Run(context.Background(), switchyard.Plan{}); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
}

func TestNoopRunner_SucceedsWithCancelledContextAndNonEmptyPlan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := switchyard.Plan{ID: uuid.New()}
	if err := (NoopRunner{}).Run(ctx, plan); err != nil {
		t.Fatalf("Run = %v, want nil regardless of context state or plan contents", err)
	}
}
