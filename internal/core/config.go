package core

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the entire breachline configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis" json:"analysis"`
	Geo      GeoConfig      `yaml:"geo" toml:"geo" json:"geo"`
	Store    StoreConfig    `yaml:"store" toml:"store" json:"store"`
	Bus      BusConfig      `yaml:"bus" toml:"bus" json:"bus"`
	Server   ServerConfig   `yaml:"server" toml:"server" json:"server"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging" json:"logging"`
}

// AnalysisConfig holds every detection and reconstruction threshold.
type AnalysisConfig struct {
	HomeCountry                     string   `yaml:"home_country" toml:"home_country" json:"home_country"`
	MaxTravelSpeedKmh               float64  `yaml:"max_travel_speed_kmh" toml:"max_travel_speed_kmh" json:"max_travel_speed_kmh"`
	MinTravelDistanceKm             float64  `yaml:"min_travel_distance_km" toml:"min_travel_distance_km" json:"min_travel_distance_km"`
	HighRiskCountries               []string `yaml:"high_risk_countries" toml:"high_risk_countries" json:"high_risk_countries"`
	StrictHighRisk                  bool     `yaml:"strict_high_risk" toml:"strict_high_risk" json:"strict_high_risk"`
	PrimaryThreshold                float64  `yaml:"primary_threshold" toml:"primary_threshold" json:"primary_threshold"`
	SecondaryThreshold              float64  `yaml:"secondary_threshold" toml:"secondary_threshold" json:"secondary_threshold"`
	BulkRemediationThreshold        int      `yaml:"bulk_remediation_threshold" toml:"bulk_remediation_threshold" json:"bulk_remediation_threshold"`
	CredentialStuffingThreshold     int      `yaml:"credential_stuffing_threshold" toml:"credential_stuffing_threshold" json:"credential_stuffing_threshold"`
	CredentialStuffingWindow        string   `yaml:"credential_stuffing_window" toml:"credential_stuffing_window" json:"credential_stuffing_window"`
	CorrelationWindow               string   `yaml:"correlation_window" toml:"correlation_window" json:"correlation_window"`
	ExcludeCountriesFromAttackStart []string `yaml:"exclude_countries_from_attack_start" toml:"exclude_countries_from_attack_start" json:"exclude_countries_from_attack_start"`
}

// GeoConfig holds geolocation settings.
type GeoConfig struct {
	CityDBPath string `yaml:"city_db_path" toml:"city_db_path" json:"city_db_path"` // optional MaxMind GeoIP2/GeoLite2 City database
	CacheSize  int    `yaml:"cache_size" toml:"cache_size" json:"cache_size"`       // distance cache entries
}

// StoreConfig holds results database settings.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver" json:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn" toml:"dsn" json:"-"`
}

// BusConfig holds NATS settings for publishing reports.
type BusConfig struct {
	URL      string `yaml:"url" toml:"url" json:"url"`
	Embedded bool   `yaml:"embedded" toml:"embedded" json:"embedded"`
	DataDir  string `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	Port     int    `yaml:"port" toml:"port" json:"port"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Host        string   `yaml:"host" toml:"host" json:"host"`
	Port        int      `yaml:"port" toml:"port" json:"port"`
	APIKeys     []string `yaml:"api_keys" toml:"api_keys" json:"-"`
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins" json:"cors_origins"`
	MaxBodyMB   int      `yaml:"max_body_mb" toml:"max_body_mb" json:"max_body_mb"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// DefaultHighRiskCountries is the curated set of countries whose presence in
// a sign-in is itself a signal.
var DefaultHighRiskCountries = []string{"BY", "CN", "CU", "IR", "KP", "NG", "RU", "SY", "VE"}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			HomeCountry:                     "AU",
			MaxTravelSpeedKmh:               1000,
			MinTravelDistanceKm:             500,
			HighRiskCountries:               append([]string(nil), DefaultHighRiskCountries...),
			PrimaryThreshold:                0.5,
			SecondaryThreshold:              0.05,
			BulkRemediationThreshold:        5,
			CredentialStuffingThreshold:     5,
			CredentialStuffingWindow:        "60m",
			CorrelationWindow:               "30m",
			ExcludeCountriesFromAttackStart: []string{"US"},
		},
		Geo: GeoConfig{
			CacheSize: 4096,
		},
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "./data/breachline.db",
		},
		Bus: BusConfig{
			URL:     "nats://127.0.0.1:4222",
			DataDir: "./data/nats",
			Port:    4222,
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      1790,
			MaxBodyMB: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML or TOML file, falling back to
// defaults. The format is chosen by extension: ".toml" is TOML, anything
// else is YAML. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeConfig(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func decodeConfig(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ApplyEnv overrides selected settings from BREACHLINE_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BREACHLINE_HOME_COUNTRY"); v != "" {
		c.Analysis.HomeCountry = strings.ToUpper(v)
	}
	if v := os.Getenv("BREACHLINE_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("BREACHLINE_NATS_URL"); v != "" {
		c.Bus.URL = v
	}
	if v := os.Getenv("BREACHLINE_GEOIP_DB"); v != "" {
		c.Geo.CityDBPath = v
	}
	if len(c.Server.APIKeys) == 0 {
		if v := os.Getenv("BREACHLINE_API_KEY"); v != "" {
			c.Server.APIKeys = []string{v}
		}
	}
}

// SaveConfig writes the configuration to a YAML or TOML file.
func SaveConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate reports configuration that would make the pipeline meaningless.
func (c *Config) Validate() error {
	a := c.Analysis
	var problems []string
	if a.MaxTravelSpeedKmh <= 0 {
		problems = append(problems, "max_travel_speed_kmh must be positive")
	}
	if a.MinTravelDistanceKm < 0 {
		problems = append(problems, "min_travel_distance_km must not be negative")
	}
	if a.PrimaryThreshold < 0 || a.PrimaryThreshold > 1 {
		problems = append(problems, "primary_threshold must be within [0,1]")
	}
	if a.SecondaryThreshold < 0 || a.SecondaryThreshold > 1 {
		problems = append(problems, "secondary_threshold must be within [0,1]")
	}
	if a.BulkRemediationThreshold < 1 {
		problems = append(problems, "bulk_remediation_threshold must be at least 1")
	}
	if a.CredentialStuffingThreshold < 2 {
		problems = append(problems, "credential_stuffing_threshold must be at least 2")
	}
	if _, err := parsePositiveDuration(a.CredentialStuffingWindow); err != nil {
		problems = append(problems, "credential_stuffing_window: "+err.Error())
	}
	if _, err := parsePositiveDuration(a.CorrelationWindow); err != nil {
		problems = append(problems, "correlation_window: "+err.Error())
	}
	switch c.Store.Driver {
	case "", "sqlite3", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// StuffingWindow returns the credential-stuffing window, defaulting to 60m.
func (a AnalysisConfig) StuffingWindow() time.Duration {
	if d, err := parsePositiveDuration(a.CredentialStuffingWindow); err == nil {
		return d
	}
	return 60 * time.Minute
}

// CorrelationSpan returns the timeline correlation window, defaulting to 30m.
func (a AnalysisConfig) CorrelationSpan() time.Duration {
	if d, err := parsePositiveDuration(a.CorrelationWindow); err == nil {
		return d
	}
	return 30 * time.Minute
}

// HighRiskSet returns the high-risk countries as an upper-cased set.
func (a AnalysisConfig) HighRiskSet() map[string]bool {
	return CountrySet(a.HighRiskCountries)
}

// CountrySet builds an upper-cased lookup set from country codes.
func CountrySet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			set[c] = true
		}
	}
	return set
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// LogLevel returns the lower-cased log level.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}

// AuthEnabled returns true if API key authentication is configured.
func (c *Config) AuthEnabled() bool {
	return len(c.Server.APIKeys) > 0
}

// ValidateAPIKey checks if the provided key matches any configured API key.
// Uses constant-time comparison to prevent timing attacks.
func (c *Config) ValidateAPIKey(key string) bool {
	for _, valid := range c.Server.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
