package cachebridge

import (
	"testing"

	"plctag"
)

func TestConfigPrefixDefault(t *testing.T) {
	var c Config
	if got := c.prefix(); got != "plctag" {
		t.Errorf("expected default prefix %q, got %q", "plctag", got)
	}
	c.Prefix = "scada"
	if got := c.prefix(); got != "scada" {
		t.Errorf("expected custom prefix %q, got %q", "scada", got)
	}
}

func TestKeyFormat(t *testing.T) {
	b := New(Config{Prefix: "ns"}, plctag.NewRegistry())
	if got, want := b.key("10.0.0.1", "MyTag"), "ns:10.0.0.1:MyTag"; got != want {
		t.Errorf("key() = %q, want %q", got, want)
	}
}

func TestHandleEventNoopWithoutClient(t *testing.T) {
	b := New(Config{}, plctag.NewRegistry())
	// No Start call means b.client is nil; HandleEvent must not panic
	// regardless of event kind or status.
	b.HandleEvent(1, plctag.EventReadCompleted, plctag.StatusOK, nil)
	b.HandleEvent(1, plctag.EventWriteCompleted, plctag.StatusOK, nil)
}

func TestGetWithoutStartReturnsError(t *testing.T) {
	b := New(Config{}, plctag.NewRegistry())
	_, _, ok, err := b.Get("plc", "tag")
	if ok {
		t.Error("expected ok=false before Start")
	}
	if err == nil {
		t.Error("expected an error before Start")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	b := New(Config{}, plctag.NewRegistry())
	b.Stop()
}
