package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := RequestID(ctx); ok {
		t.Fatalf("empty context must not carry a request id")
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	ctx = WithAgentID(ctx, "agent-7")
	if got, ok := AgentID(ctx); !ok || got != "agent-7" {
		t.Fatalf("AgentID mismatch: %v %v", got, ok)
	}

	ctx = WithTaskID(ctx, "task-42")
	if got, ok := TaskID(ctx); !ok || got != "task-42" {
		t.Fatalf("TaskID mismatch: %v %v", got, ok)
	}

	if _, ok := TaskID(WithTaskID(context.Background(), "")); ok {
		t.Fatalf("empty task id must report false")
	}
}
