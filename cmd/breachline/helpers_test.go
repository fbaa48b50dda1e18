package main

import (
	"reflect"
	"testing"
)

// ─── suggest ──────────────────────────────────────────────────────────────────

func TestSuggest_PrefixMatch(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"ana", "analyze"},
		{"base", "baselines"},
		{"anom", "anomalies"},
		{"time", "timeline"},
		{"inc", "incident"},
		{"ru", "runs"},
		{"ser", "serve"},
		{"con", "config"},
		{"ver", "version"},
		{"hel", "help"},
	}
	for _, tc := range tests {
		if got := suggest(tc.input); got != tc.want {
			t.Errorf("suggest(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSuggest_TypoCorrection(t *testing.T) {
	if got := suggest("serbe"); got != "serve" {
		t.Errorf("suggest('serbe') = %q, want 'serve'", got)
	}
}

func TestSuggest_NoMatch(t *testing.T) {
	if got := suggest("zzzzzzzzz"); got != "" {
		t.Errorf("suggest('zzzzzzzzz') = %q, want empty", got)
	}
}

func TestSuggest_CaseInsensitive(t *testing.T) {
	if got := suggest("TIMELINE"); got != "timeline" {
		t.Errorf("suggest('TIMELINE') = %q, want 'timeline'", got)
	}
}

func TestCommandHelp_CoversEveryCommand(t *testing.T) {
	documented := map[string]bool{}
	for _, c := range commandHelp {
		documented[c.name] = true
	}
	for _, c := range commands {
		if !documented[c] {
			t.Errorf("command %q has no help entry", c)
		}
	}
	if len(commandHelp) != len(commands) {
		t.Errorf("len(commandHelp) = %d, want %d", len(commandHelp), len(commands))
	}
}

// ─── parseValue ───────────────────────────────────────────────────────────────

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{"true", true},
		{"False", false},
		{"42", 42},
		{"0.5", 0.5},
		{"NZ", "NZ"},
		{"", ""},
		{"RU, CN,KP", []any{"RU", "CN", "KP"}},
	}
	for _, tc := range tests {
		got := parseValue(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tc.input, got, got, tc.want, tc.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" IMPOSSIBLE_TRAVEL, ,FOREIGN_LOGIN ")
	want := []string{"IMPOSSIBLE_TRAVEL", "FOREIGN_LOGIN"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList('') = %v, want nil", got)
	}
}

// ─── setNestedValue ───────────────────────────────────────────────────────────

func TestSetNestedValue_MultiLevel(t *testing.T) {
	m := map[string]any{
		"analysis": map[string]any{"home_country": "AU"},
	}
	if err := setNestedValue(m, []string{"analysis", "home_country"}, "NZ"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	analysis := m["analysis"].(map[string]any)
	if analysis["home_country"] != "NZ" {
		t.Errorf("analysis.home_country = %v, want NZ", analysis["home_country"])
	}
}

func TestSetNestedValue_CreateIntermediate(t *testing.T) {
	m := map[string]any{}
	if err := setNestedValue(m, []string{"server", "port"}, "8080"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server := m["server"].(map[string]any)
	if server["port"] != 8080 {
		t.Errorf("server.port = %v, want 8080", server["port"])
	}
}

func TestSetNestedValue_EmptyPath(t *testing.T) {
	if err := setNestedValue(map[string]any{}, nil, "x"); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSetNestedValue_NotAMap(t *testing.T) {
	m := map[string]any{"logging": "info"}
	if err := setNestedValue(m, []string{"logging", "level"}, "debug"); err == nil {
		t.Error("expected error when traversing a scalar")
	}
}

// ─── envConfig ────────────────────────────────────────────────────────────────

func TestEnvConfig_FlagOverride(t *testing.T) {
	t.Setenv("BREACHLINE_CONFIG", "/etc/breachline.yaml")
	if got := envConfig("custom.toml"); got != "custom.toml" {
		t.Errorf("envConfig = %q, want custom.toml", got)
	}
}

func TestEnvConfig_Env(t *testing.T) {
	t.Setenv("BREACHLINE_CONFIG", "/etc/breachline.yaml")
	if got := envConfig(defaultConfigPath); got != "/etc/breachline.yaml" {
		t.Errorf("envConfig = %q, want /etc/breachline.yaml", got)
	}
}

func TestEnvConfig_Default(t *testing.T) {
	t.Setenv("BREACHLINE_CONFIG", "")
	if got := envConfig(defaultConfigPath); got != defaultConfigPath {
		t.Errorf("envConfig = %q, want %q", got, defaultConfigPath)
	}
}

func TestSeverityColor_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	for _, label := range []string{"HIGH", "MEDIUM", "LOW", "UNKNOWN"} {
		if got := severityColor(label); got != label {
			t.Errorf("severityColor(%q) = %q, want plain label", label, got)
		}
	}
}
