package auditbridge

import (
	"testing"

	"plctag"
)

func TestHandleEventNoopBeforeStart(t *testing.T) {
	b := New(Config{Topic: "audit"}, plctag.NewRegistry())
	// b.writer is nil until Start; HandleEvent must not panic.
	b.HandleEvent(1, plctag.EventWriteCompleted, plctag.StatusOK, nil)
}

func TestHandleEventIgnoresNonWriteEvents(t *testing.T) {
	b := New(Config{Topic: "audit"}, plctag.NewRegistry())
	for _, k := range []plctag.EventKind{plctag.EventCreated, plctag.EventReadCompleted, plctag.EventAborted, plctag.EventDestroyed} {
		// Without a writer these are all no-ops regardless, but this
		// also documents that only WRITE_COMPLETED is ever audited.
		b.HandleEvent(1, k, plctag.StatusOK, nil)
	}
}

func TestStartBuildsWriterWithDefaultMaxAttempts(t *testing.T) {
	b := New(Config{Brokers: []string{"localhost:9092"}, Topic: "audit"}, plctag.NewRegistry())
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()
	if b.writer == nil {
		t.Fatal("expected writer to be set after Start")
	}
	if b.writer.MaxAttempts != 3 {
		t.Errorf("expected default MaxAttempts 3, got %d", b.writer.MaxAttempts)
	}
	if b.writer.Topic != "audit" {
		t.Errorf("expected topic %q, got %q", "audit", b.writer.Topic)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	b := New(Config{}, plctag.NewRegistry())
	b.Stop()
}
