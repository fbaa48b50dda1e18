package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/1sec-project/breachline/internal/anomaly"
	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/incident"
)

// ─── formats ──────────────────────────────────────────────────────────────────

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  OutputFormat
	}{
		{"json", FormatJSON},
		{" JSON ", FormatJSON},
		{"csv", FormatCSV},
		{"table", FormatTable},
		{"yaml", FormatTable},
		{"", FormatTable},
	}
	for _, tc := range tests {
		if got := parseFormat(tc.input); got != tc.want {
			t.Errorf("parseFormat(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestFormatName(t *testing.T) {
	for _, f := range []OutputFormat{FormatTable, FormatJSON, FormatCSV} {
		if got := parseFormat(formatName(f)); got != f {
			t.Errorf("parseFormat(formatName(%v)) = %v", f, got)
		}
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "USER", "COUNTRY")
	tbl.AddRow("alice@contoso.com", "AU")
	tbl.AddRow("bob", "NZ")
	tbl.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("rendered %d lines, want 6:\n%s", len(lines), buf.String())
	}
	width := len([]rune(lines[0]))
	for i, l := range lines {
		if n := len([]rune(l)); n != width {
			t.Errorf("line %d width = %d, want %d", i, n, width)
		}
	}
	if !strings.Contains(lines[3], "alice@contoso.com") {
		t.Errorf("first data row = %q", lines[3])
	}
}

func TestTable_EmptyHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf).Render()
	if buf.Len() != 0 {
		t.Errorf("empty table rendered %q", buf.String())
	}
}

func TestTable_PadShortRow(t *testing.T) {
	tbl := NewTable(&bytes.Buffer{}, "A", "B", "C")
	tbl.AddRow("only")
	if got := len(tbl.Rows()[0]); got != 3 {
		t.Errorf("row length = %d, want 3", got)
	}
}

func TestTable_WriteCSV(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "USER", "DESCRIPTION")
	tbl.AddRow("alice", "travel from Sydney, AU")
	tbl.Write(FormatCSV)

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[1][1] != "travel from Sydney, AU" {
		t.Errorf("description = %q", records[1][1])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q, want short", got)
	}
	got := truncate("Zürich → Moscow in 2h", 8)
	if n := len([]rune(got)); n != 8 {
		t.Errorf("truncated length = %d runes, want 8", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncate = %q, want ellipsis suffix", got)
	}
}

// ─── render ───────────────────────────────────────────────────────────────────

func sampleAnomalies() []anomaly.Anomaly {
	ts := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	return []anomaly.Anomaly{
		{ID: "a1", Kind: anomaly.KindImpossibleTravel, UserID: "alice", Timestamp: ts, Severity: core.SeverityHigh, Description: "Sydney to Moscow"},
		{ID: "a2", Kind: anomaly.KindForeignLogin, UserID: "bob", Timestamp: ts.Add(time.Hour), Severity: core.SeverityMedium, Description: "sign-in from RU"},
		{ID: "a3", Kind: anomaly.KindForeignLogin, UserID: "alice", Timestamp: ts.Add(2 * time.Hour), Severity: core.SeverityMedium, Description: "sign-in from RU"},
	}
}

func TestRenderAnomalies_CSV(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	renderAnomalies(&buf, FormatCSV, sampleAnomalies())

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4", len(records))
	}
	if records[1][1] != "IMPOSSIBLE_TRAVEL" || records[1][2] != "HIGH" {
		t.Errorf("first row = %v", records[1])
	}
}

func TestRenderAnomalies_JSON(t *testing.T) {
	var buf bytes.Buffer
	renderAnomalies(&buf, FormatJSON, sampleAnomalies())

	var out struct {
		Anomalies []anomaly.Anomaly `json:"anomalies"`
		Summary   anomaly.Summary   `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Summary.Total != 3 || out.Summary.UniqueUsers != 2 {
		t.Errorf("summary = %+v, want total 3 across 2 users", out.Summary)
	}
}

func TestRenderAnomalies_Empty(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	renderAnomalies(&buf, FormatTable, nil)
	if !strings.Contains(buf.String(), "No anomalies detected") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderGroups_CSV(t *testing.T) {
	groups, err := anomaly.Aggregate(sampleAnomalies(), anomaly.GroupByUser)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	var buf bytes.Buffer
	renderGroups(&buf, FormatCSV, anomaly.GroupByUser, groups)

	records, _ := csv.NewReader(&buf).ReadAll()
	counts := map[string]string{}
	for _, r := range records[1:] {
		counts[r[0]] = r[1]
	}
	if counts["alice"] != "2" || counts["bob"] != "1" {
		t.Errorf("counts = %v, want alice=2 bob=1", counts)
	}
	if records[0][0] != "USER" {
		t.Errorf("header = %v", records[0])
	}
}

func TestFilterKinds(t *testing.T) {
	got := filterKinds(sampleAnomalies(), []string{"FOREIGN_LOGIN"})
	if len(got) != 2 {
		t.Fatalf("filterKinds kept %d, want 2", len(got))
	}
	for _, a := range got {
		if a.Kind != anomaly.KindForeignLogin {
			t.Errorf("kept kind %s", a.Kind)
		}
	}
}

func TestRenderBaselines_CSV(t *testing.T) {
	baselines := map[string]baseline.UserBaseline{
		"bob":   {UserID: "bob", PrimaryCountry: "AU", Confidence: 1, TotalObservations: 4},
		"alice": {UserID: "alice", PrimaryCountry: "RU", Confidence: 0.75, TotalObservations: 4, SecondaryCountries: []string{"AU"}, IsSuspicious: true},
	}
	var buf bytes.Buffer
	renderBaselines(&buf, FormatCSV, baselines)

	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1][0] != "alice" || records[1][2] != "75.0%" || records[1][5] != "yes" {
		t.Errorf("alice row = %v", records[1])
	}
	if records[2][0] != "bob" || records[2][5] != "" {
		t.Errorf("bob row = %v", records[2])
	}
}

func TestRenderIncident_CSV(t *testing.T) {
	dwell := 3
	it := incident.IncidentTimeline{
		HomeCountry:           "AU",
		AttackStartConfidence: incident.ConfidenceHigh,
		DwellTimeDays:         &dwell,
	}
	var buf bytes.Buffer
	renderIncident(&buf, FormatCSV, it)

	records, _ := csv.NewReader(&buf).ReadAll()
	fields := map[string]string{}
	for _, r := range records[1:] {
		fields[r[0]] = r[1]
	}
	if fields["Confidence"] != "HIGH" {
		t.Errorf("Confidence = %q, want HIGH", fields["Confidence"])
	}
	if fields["Dwell time"] != "3 days" {
		t.Errorf("Dwell time = %q, want 3 days", fields["Dwell time"])
	}
}
