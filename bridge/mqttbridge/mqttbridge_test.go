package mqttbridge

import (
	"testing"

	"plctag"
)

func TestConfigRootTopicDefault(t *testing.T) {
	var c Config
	if got := c.rootTopic(); got != "plctag" {
		t.Errorf("expected default root topic %q, got %q", "plctag", got)
	}
	c.RootTopic = "scada"
	if got := c.rootTopic(); got != "scada" {
		t.Errorf("expected custom root topic %q, got %q", "scada", got)
	}
}

func TestHandleEventNoopWhenNotRunning(t *testing.T) {
	b := New(Config{}, plctag.NewRegistry())
	if b.IsRunning() {
		t.Fatal("bridge should not be running before Start")
	}
	// With no client connected, HandleEvent must return without panicking
	// regardless of event kind.
	b.HandleEvent(1, plctag.EventReadCompleted, plctag.StatusOK, nil)
	b.HandleEvent(1, plctag.EventCreated, plctag.StatusOK, nil)
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	b := New(Config{}, plctag.NewRegistry())
	b.Stop()
	if b.IsRunning() {
		t.Fatal("bridge should remain stopped")
	}
}

func TestPublishedKindsExcludesInProcessEvents(t *testing.T) {
	for _, k := range []plctag.EventKind{plctag.EventCreated, plctag.EventReadStarted, plctag.EventWriteStarted} {
		if publishedKinds[k] {
			t.Errorf("expected %v to be excluded from published kinds", k)
		}
	}
	for _, k := range []plctag.EventKind{plctag.EventReadCompleted, plctag.EventWriteCompleted, plctag.EventAborted, plctag.EventDestroyed} {
		if !publishedKinds[k] {
			t.Errorf("expected %v to be included in published kinds", k)
		}
	}
}
