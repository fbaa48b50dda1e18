package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/ingest"
	"github.com/1sec-project/breachline/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ─── Helpers ─────────────────────────────────────────────────────────────────

func testConfig(keys ...string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Server.APIKeys = keys
	return cfg
}

func newTestServer(t *testing.T, cfg *core.Config, opts ...Option) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	a := analysis.New(cfg.Analysis, zerolog.Nop(), analysis.WithMetrics(analysis.NewMetrics(reg)))
	loader, err := ingest.NewLoader(ingest.Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	return NewServer(cfg, a, loader, zerolog.Nop(), append([]Option{WithGatherer(reg)}, opts...)...)
}

// compromisedBody is eight days of Melbourne sign-ins followed by a Moscow
// sign-in, an inbox rule and a password reset.
func compromisedBody() string {
	var rows []string
	for d := 1; d <= 8; d++ {
		rows = append(rows, fmt.Sprintf(`{"timestamp": "2024-03-%02dT09:00:00Z", "user_id": "victim", "app": "Outlook", "city": "Melbourne", "country": "AU", "status": "Success"}`, d))
	}
	rows = append(rows, `{"timestamp": "2024-03-10T09:00:00Z", "user_id": "victim", "app": "Outlook", "source_ip": "198.51.100.7", "city": "Moscow", "country": "RU", "status": "Success"}`)
	return `{
		"sign_ins": [` + strings.Join(rows, ",") + `],
		"audits": [{"timestamp": "2024-03-13T10:00:00Z", "activity": "Reset user password", "target_user": "victim", "result": "success"}],
		"mailbox": [{"timestamp": "2024-03-10T09:05:00Z", "user_id": "victim", "operation": "New-InboxRule"}]
	}`
}

func do(s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body
}

// ─── writeJSON ────────────────────────────────────────────────────────────────

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// ─── Health endpoint ──────────────────────────────────────────────────────────

func TestHandleHealth_GET(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decode(t, w); body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestHandleHealth_MethodNotAllowed(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodPost, "/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleHealth_BypassesAuth(t *testing.T) {
	w := do(newTestServer(t, testConfig("secret-key")), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health should bypass auth, got status %d", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodGet, "/api/v1/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ─── Auth middleware ──────────────────────────────────────────────────────────

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		headers []string
		want    int
	}{
		{"open mode", nil, nil, http.StatusOK},
		{"missing key", []string{"my-secret"}, nil, http.StatusUnauthorized},
		{"invalid bearer", []string{"my-secret"}, []string{"Authorization", "Bearer wrong"}, http.StatusForbidden},
		{"valid bearer", []string{"my-secret"}, []string{"Authorization", "Bearer my-secret"}, http.StatusOK},
		{"valid X-API-Key", []string{"my-secret"}, []string{"X-API-Key", "my-secret"}, http.StatusOK},
		{"invalid X-API-Key", []string{"my-secret"}, []string{"X-API-Key", "wrong"}, http.StatusForbidden},
		{"second key", []string{"a", "b"}, []string{"X-API-Key", "b"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestServer(t, testConfig(tt.keys...)), http.MethodGet, "/api/v1/config", "", tt.headers...)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMetrics_RequiresAuth(t *testing.T) {
	s := newTestServer(t, testConfig("k"))
	if w := do(s, http.MethodGet, "/metrics", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("metrics without key = %d, want 401", w.Code)
	}
}

// ─── Analysis endpoints ───────────────────────────────────────────────────────

func TestHandleAnalyze(t *testing.T) {
	s := newTestServer(t, testConfig())
	w := do(s, http.MethodPost, "/api/v1/analyze?tenant=acme", compromisedBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	report := body["report"].(map[string]any)
	if report["tenant"] != "acme" {
		t.Errorf("tenant = %v, want acme", report["tenant"])
	}
	incident := report["incident"].(map[string]any)
	if incident["attack_start_confidence"] != "HIGH" {
		t.Errorf("confidence = %v, want HIGH", incident["attack_start_confidence"])
	}
	if dwell := incident["dwell_time_days"]; dwell != float64(3) {
		t.Errorf("dwell = %v, want 3", dwell)
	}

	m := do(s, http.MethodGet, "/metrics", "")
	if !strings.Contains(m.Body.String(), `breachline_analysis_runs_total{outcome="ok"} 1`) {
		t.Errorf("metrics missing run counter:\n%s", m.Body.String())
	}
}

func TestHandleAnalyze_BadBody(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodPost, "/api/v1/analyze", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleAnalyze_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyMB = 1
	big := `{"sign_ins": [` + strings.Repeat(`{"timestamp": "2024-03-01T09:00:00Z", "user_id": "u"},`, 30000) + `{}]}`
	w := do(newTestServer(t, cfg), http.MethodPost, "/api/v1/analyze", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestHandleBaselines(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodPost, "/api/v1/baselines", compromisedBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	victim := body["baselines"].(map[string]any)["victim"].(map[string]any)
	if victim["primary_country"] != "AU" {
		t.Errorf("primary = %v, want AU", victim["primary_country"])
	}
}

func TestHandleAnomalies_GroupBy(t *testing.T) {
	s := newTestServer(t, testConfig())
	w := do(s, http.MethodPost, "/api/v1/anomalies?group_by=kind", compromisedBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	groups, ok := body["groups"].([]any)
	if !ok || len(groups) == 0 {
		t.Fatalf("groups = %v", body["groups"])
	}

	if w := do(s, http.MethodPost, "/api/v1/anomalies?group_by=planet", compromisedBody()); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported group_by = %d, want 400", w.Code)
	}
}

func TestHandleTimeline_Filter(t *testing.T) {
	s := newTestServer(t, testConfig())
	w := do(s, http.MethodPost, "/api/v1/timeline?user=VICTIM&from=2024-03-10&to=2024-03-10", compromisedBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	events := decode(t, w)["events"].([]any)
	if len(events) != 2 {
		t.Errorf("events = %d, want the Moscow sign-in and the inbox rule", len(events))
	}

	if w := do(s, http.MethodPost, "/api/v1/timeline?from=last-tuesday", compromisedBody()); w.Code != http.StatusBadRequest {
		t.Errorf("bad from = %d, want 400", w.Code)
	}
}

func TestHandleIncident(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodPost, "/api/v1/incident", compromisedBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	it := body["incident"].(map[string]any)
	if it["home_country"] != "AU" {
		t.Errorf("home = %v, want AU", it["home_country"])
	}
	if fields, ok := body["summary"].([]any); !ok || len(fields) == 0 {
		t.Errorf("summary = %v", body["summary"])
	}
}

// ─── Stored runs ──────────────────────────────────────────────────────────────

func TestRuns_WithoutStore(t *testing.T) {
	w := do(newTestServer(t, testConfig()), http.MethodGet, "/api/v1/runs", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRuns_WithStore(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	s := newTestServer(t, testConfig(), WithStore(st))

	w := do(s, http.MethodPost, "/api/v1/analyze?tenant=acme", compromisedBody())
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", w.Code)
	}
	runID := decode(t, w)["report"].(map[string]any)["run_id"].(string)

	runs := decode(t, do(s, http.MethodGet, "/api/v1/runs?tenant=acme", ""))
	if runs["total"] != float64(1) {
		t.Errorf("runs total = %v, want 1", runs["total"])
	}

	an := do(s, http.MethodGet, "/api/v1/runs/"+runID+"/anomalies", "")
	if an.Code != http.StatusOK {
		t.Errorf("run anomalies status = %d", an.Code)
	}
	it := do(s, http.MethodGet, "/api/v1/runs/"+runID+"/incident", "")
	if it.Code != http.StatusOK {
		t.Errorf("run incident status = %d", it.Code)
	}
	if missing := do(s, http.MethodGet, "/api/v1/runs/nope/incident", ""); missing.Code != http.StatusNotFound {
		t.Errorf("unknown run = %d, want 404", missing.Code)
	}
}

// ─── Logs ─────────────────────────────────────────────────────────────────────

func TestLogs(t *testing.T) {
	ring := core.NewLogRing(20)
	logger := zerolog.New(ring)
	logger.Info().Str("component", "loader").Msg("loaded")
	logger.Warn().Str("component", "loader").Msg("invalid row skipped")

	s := newTestServer(t, testConfig(), WithLogRing(ring))

	body := decode(t, do(s, http.MethodGet, "/api/v1/logs?level=warn", ""))
	if body["total"] != float64(1) {
		t.Fatalf("total = %v, want 1", body["total"])
	}
	entry := body["logs"].([]any)[0].(map[string]any)
	if entry["message"] != "invalid row skipped" || entry["component"] != "loader" {
		t.Errorf("entry = %v", entry)
	}

	if w := do(s, http.MethodGet, "/api/v1/logs?n=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("n=0 status = %d, want 400", w.Code)
	}
	if w := do(newTestServer(t, testConfig()), http.MethodGet, "/api/v1/logs", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without ring status = %d, want 503", w.Code)
	}
}
