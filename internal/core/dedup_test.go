package core

import (
	"testing"
	"time"
)

func TestEventKey_HashStable(t *testing.T) {
	k := EventKey{Timestamp: 42, UserID: "a@x", SourceIP: "1.2.3.4", Channel: "Outlook"}
	if k.Hash() != k.Hash() {
		t.Error("hash should be deterministic")
	}
}

func TestEventKey_FieldBoundaries(t *testing.T) {
	a := EventKey{UserID: "ab", SourceIP: "c"}
	b := EventKey{UserID: "a", SourceIP: "bc"}
	if a.Hash() == b.Hash() {
		t.Error("shifted field boundaries should hash differently")
	}
}

func TestDedup_SignIns(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	events := []SignInEvent{
		{Timestamp: ts, UserID: "u1", SourceIP: "1.1.1.1", App: "Outlook", Device: "first"},
		{Timestamp: ts, UserID: "u1", SourceIP: "1.1.1.1", App: "Outlook", Device: "second"},
		{Timestamp: ts, UserID: "u1", SourceIP: "1.1.1.1", App: "Teams"},
		{Timestamp: ts.Add(time.Second), UserID: "u1", SourceIP: "1.1.1.1", App: "Outlook"},
	}
	out := Dedup(events)
	if len(out) != 3 {
		t.Fatalf("Dedup returned %d events, want 3", len(out))
	}
	if out[0].Device != "first" {
		t.Errorf("first occurrence should win, got %q", out[0].Device)
	}
}

func TestDedup_LegacyUsesProtocol(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	base := SignInEvent{Timestamp: ts, UserID: "u1", SourceIP: "9.9.9.9"}
	events := []LegacyAuthEvent{
		{SignInEvent: base, ClientProtocol: "IMAP"},
		{SignInEvent: base, ClientProtocol: "POP3"},
		{SignInEvent: base, ClientProtocol: "IMAP"},
	}
	if out := Dedup(events); len(out) != 2 {
		t.Errorf("Dedup returned %d legacy events, want 2", len(out))
	}
}

func TestDedup_Empty(t *testing.T) {
	if out := Dedup([]AuditEvent(nil)); len(out) != 0 {
		t.Errorf("Dedup(nil) = %d events, want 0", len(out))
	}
}
