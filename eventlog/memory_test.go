package eventlog

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryLog_Append(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	e, err := l.Append(ctx, "task-1", "phase_started", []byte(`{"phase":"plan"}`),
		WithUserID("u-1"), WithAgentName("coder"), WithMetadata("epic", "E-7"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if e.Version != 1 {
		t.Errorf("expected version 1, got %d", e.Version)
	}
	if e.ID == "" {
		t.Error("expected generated event ID")
	}
	if e.UserID != "u-1" || e.AgentName != "coder" {
		t.Errorf("attribution lost: %+v", e)
	}
	if e.Metadata["epic"] != "E-7" {
		t.Errorf("metadata lost: %+v", e.Metadata)
	}
}

func TestMemoryLog_AppendValidation(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	if _, err := l.Append(ctx, "", "phase_started", nil); err != ErrInvalidTaskID {
		t.Errorf("expected ErrInvalidTaskID, got %v", err)
	}
	if _, err := l.Append(ctx, "task-1", "", nil); err != ErrInvalidType {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestMemoryLog_VersionsPerTask(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		e, err := l.Append(ctx, "task-1", "step", nil)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if e.Version != uint64(i) {
			t.Errorf("expected version %d, got %d", i, e.Version)
		}
	}

	// A different task has its own sequence.
	e, err := l.Append(ctx, "task-2", "step", nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if e.Version != 1 {
		t.Errorf("expected task-2 to start at version 1, got %d", e.Version)
	}
}

// Concurrent appends for one task must produce strictly increasing
// versions with no duplicates.
func TestMemoryLog_ConcurrentAppendMonotonicity(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Append(ctx, "task-1", "tick", nil); err != nil {
				t.Errorf("Append failed: %v", err)
			}
		}()
	}
	wg.Wait()

	events, err := l.FindByTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("FindByTask failed: %v", err)
	}
	if len(events) != n {
		t.Fatalf("expected %d events, got %d", n, len(events))
	}
	seen := make(map[uint64]bool, n)
	for i, e := range events {
		if seen[e.Version] {
			t.Errorf("duplicate version %d", e.Version)
		}
		seen[e.Version] = true
		if e.Version != uint64(i)+1 {
			t.Errorf("event %d has version %d, want %d", i, e.Version, i+1)
		}
	}
}

func TestMemoryLog_FindOrdering(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := l.Append(ctx, "task-1", fmt.Sprintf("e%d", i), nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	asc, err := l.FindByTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("FindByTask failed: %v", err)
	}
	desc, err := l.FindByTaskDesc(ctx, "task-1")
	if err != nil {
		t.Fatalf("FindByTaskDesc failed: %v", err)
	}
	for i := range asc {
		if asc[i].Version != desc[len(desc)-1-i].Version {
			t.Errorf("desc is not the reverse of asc at %d", i)
		}
	}
}

func TestMemoryLog_EmptyTaskReturnsEmpty(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	events, err := l.FindByTask(ctx, "ghost")
	if err != nil {
		t.Fatalf("FindByTask failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty slice, got %d events", len(events))
	}

	if _, err := l.LastEvent(ctx, "ghost"); err != ErrNoEvents {
		t.Errorf("expected ErrNoEvents, got %v", err)
	}
}

func TestMemoryLog_LastEventOfType(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	l.Append(ctx, "task-1", "phase_started", []byte("a"))
	l.Append(ctx, "task-1", "pr_created", []byte("b"))
	l.Append(ctx, "task-1", "phase_started", []byte("c"))

	e, err := l.LastEventOfType(ctx, "task-1", "phase_started")
	if err != nil {
		t.Fatalf("LastEventOfType failed: %v", err)
	}
	if string(e.Payload) != "c" {
		t.Errorf("expected latest phase_started, got payload %q", e.Payload)
	}

	if _, err := l.LastEventOfType(ctx, "task-1", "missing"); err != ErrNoEvents {
		t.Errorf("expected ErrNoEvents, got %v", err)
	}
}

func TestMemoryLog_Replay(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Append(ctx, "task-1", "tick", nil)
	}

	events, err := l.Replay(ctx, "task-1", 3)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected versions 3..5, got %d events", len(events))
	}
	if events[0].Version != 3 {
		t.Errorf("expected replay to start at version 3, got %d", events[0].Version)
	}
}

func TestMemoryLog_Summary(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	l.Append(ctx, "task-1", "phase_started", nil)
	l.Append(ctx, "task-1", "phase_started", nil)
	l.Append(ctx, "task-1", "pr_created", nil)

	counts, err := l.Summary(ctx, "task-1")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if counts["phase_started"] != 2 || counts["pr_created"] != 1 {
		t.Errorf("unexpected summary: %v", counts)
	}
}

func TestMemoryLog_CallerCannotMutateStored(t *testing.T) {
	l := NewMemoryLog()
	defer l.Close()
	ctx := context.Background()

	payload := []byte("original")
	e, err := l.Append(ctx, "task-1", "tick", payload)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Mutate both the input slice and the returned event.
	payload[0] = 'X'
	e.Payload[0] = 'Y'

	stored, err := l.LastEvent(ctx, "task-1")
	if err != nil {
		t.Fatalf("LastEvent failed: %v", err)
	}
	if string(stored.Payload) != "original" {
		t.Errorf("stored payload mutated: %q", stored.Payload)
	}
}

func TestMemoryLog_Close(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := l.Append(ctx, "task-1", "tick", nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := l.Close(); err != ErrClosed {
		t.Errorf("second Close should return ErrClosed, got %v", err)
	}
}
