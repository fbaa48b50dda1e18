package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ─── DefaultConfig ──────────────────────────────────────────────────────────

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	a := cfg.Analysis

	if a.HomeCountry != "AU" {
		t.Errorf("default HomeCountry = %q, want AU", a.HomeCountry)
	}
	if a.MaxTravelSpeedKmh != 1000 {
		t.Errorf("default MaxTravelSpeedKmh = %v, want 1000", a.MaxTravelSpeedKmh)
	}
	if a.PrimaryThreshold != 0.5 || a.SecondaryThreshold != 0.05 {
		t.Errorf("default thresholds = %v/%v, want 0.5/0.05", a.PrimaryThreshold, a.SecondaryThreshold)
	}
	if a.BulkRemediationThreshold != 5 || a.CredentialStuffingThreshold != 5 {
		t.Errorf("default bulk/stuffing = %d/%d, want 5/5", a.BulkRemediationThreshold, a.CredentialStuffingThreshold)
	}
	if a.StuffingWindow() != 60*time.Minute {
		t.Errorf("StuffingWindow() = %v, want 60m", a.StuffingWindow())
	}
	if len(a.ExcludeCountriesFromAttackStart) != 1 || a.ExcludeCountriesFromAttackStart[0] != "US" {
		t.Errorf("default exclude = %v, want [US]", a.ExcludeCountriesFromAttackStart)
	}
	if !a.HighRiskSet()["RU"] {
		t.Error("RU should be in the default high-risk set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// ─── LoadConfig ─────────────────────────────────────────────────────────────

func TestLoadConfig_EmptyPath_ReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error: %v", err)
	}
	if cfg.Analysis.HomeCountry == "" {
		t.Error("expected default home country")
	}
}

func TestLoadConfig_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig(missing) error: %v", err)
	}
	if cfg.Analysis.MaxTravelSpeedKmh != 1000 {
		t.Errorf("MaxTravelSpeedKmh = %v, want 1000", cfg.Analysis.MaxTravelSpeedKmh)
	}
}

func TestLoadConfig_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := "analysis:\n  home_country: NZ\n  max_travel_speed_kmh: 800\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Analysis.HomeCountry != "NZ" {
		t.Errorf("HomeCountry = %q, want NZ", cfg.Analysis.HomeCountry)
	}
	if cfg.Analysis.MaxTravelSpeedKmh != 800 {
		t.Errorf("MaxTravelSpeedKmh = %v, want 800", cfg.Analysis.MaxTravelSpeedKmh)
	}
	if cfg.Analysis.PrimaryThreshold != 0.5 {
		t.Errorf("unset PrimaryThreshold = %v, want default 0.5", cfg.Analysis.PrimaryThreshold)
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	content := "[analysis]\nhome_country = \"GB\"\nbulk_remediation_threshold = 3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Analysis.HomeCountry != "GB" || cfg.Analysis.BulkRemediationThreshold != 3 {
		t.Errorf("got home=%q bulk=%d, want GB/3", cfg.Analysis.HomeCountry, cfg.Analysis.BulkRemediationThreshold)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("analysis: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("BREACHLINE_HOME_COUNTRY", "ca")
	t.Setenv("BREACHLINE_API_KEY", "k1")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.HomeCountry != "CA" {
		t.Errorf("HomeCountry = %q, want CA", cfg.Analysis.HomeCountry)
	}
	if !cfg.AuthEnabled() || !cfg.ValidateAPIKey("k1") {
		t.Error("API key from env should be accepted")
	}
	if cfg.ValidateAPIKey("k2") {
		t.Error("unknown key should be rejected")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		path := filepath.Join(t.TempDir(), name)
		cfg := DefaultConfig()
		cfg.Analysis.HomeCountry = "DE"
		if err := SaveConfig(cfg, path); err != nil {
			t.Fatalf("SaveConfig(%s) error: %v", name, err)
		}
		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s) error: %v", name, err)
		}
		if loaded.Analysis.HomeCountry != "DE" {
			t.Errorf("%s: HomeCountry = %q, want DE", name, loaded.Analysis.HomeCountry)
		}
	}
}

// ─── Validate ───────────────────────────────────────────────────────────────

func TestValidate_RejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero speed", func(c *Config) { c.Analysis.MaxTravelSpeedKmh = 0 }},
		{"threshold above one", func(c *Config) { c.Analysis.PrimaryThreshold = 1.5 }},
		{"bad window", func(c *Config) { c.Analysis.CredentialStuffingWindow = "soon" }},
		{"negative window", func(c *Config) { c.Analysis.CorrelationWindow = "-5m" }},
		{"stuffing of one", func(c *Config) { c.Analysis.CredentialStuffingThreshold = 1 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestCountrySet_Normalizes(t *testing.T) {
	set := CountrySet([]string{" ru", "Cn", ""})
	if !set["RU"] || !set["CN"] || len(set) != 2 {
		t.Errorf("CountrySet = %v, want {RU, CN}", set)
	}
}
