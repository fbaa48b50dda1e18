package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"":             "default",
		"acme.corp":    "acme_corp",
		"tenant one":   "tenant_one",
		"wild*card>":   "wild_card_",
		"incident":     "incident",
	}
	for in, want := range tests {
		if got := subjectToken(in); got != want {
			t.Errorf("subjectToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReportBus_EmbeddedPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	cfg := &BusConfig{Embedded: true, DataDir: t.TempDir(), Port: -1}
	bus, err := NewReportBus(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewReportBus error: %v", err)
	}
	defer bus.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := bus.nc.Subscribe("breach.>", func(m *nats.Msg) { received <- m })
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer sub.Unsubscribe()

	payload := map[string]any{"kind": "IMPOSSIBLE_TRAVEL", "user_id": "alice"}
	if err := bus.Publish("acme.corp", "anomaly", payload); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case m := <-received:
		if m.Subject != "breach.acme_corp.anomaly" {
			t.Errorf("subject = %q, want breach.acme_corp.anomaly", m.Subject)
		}
		var got map[string]any
		if err := json.Unmarshal(m.Data, &got); err != nil {
			t.Fatalf("payload not JSON: %v", err)
		}
		if got["user_id"] != "alice" {
			t.Errorf("user_id = %v, want alice", got["user_id"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}

	if m := bus.Metrics(); m["published"] != 1 {
		t.Errorf("published = %d, want 1", m["published"])
	}
}
