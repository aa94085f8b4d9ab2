package audit

import (
	"context"
	"testing"

	"affiliateprograms.wiki/internal/agent"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestLogEventWithContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = agent.ContextWithKeyID(ctx, "ak_reviewer")
	if err := LogEvent(ctx, "editorial.proposal.approve", map[string]any{"proposal_id": "p1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	if got := WithRequestID(ctx, "   "); got != ctx {
		t.Fatal("blank request id should not allocate a new context")
	}
}
