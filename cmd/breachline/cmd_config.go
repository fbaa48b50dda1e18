package main

// ---------------------------------------------------------------------------
// cmd_config.go: show, validate, initialise, or modify configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1sec-project/breachline/internal/core"
	"gopkg.in/yaml.v3"
)

func cmdConfig(args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "set":
			cmdConfigSet(args[1:])
			return
		case "init":
			cmdConfigInit(args[1:])
			return
		}
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path (YAML or TOML)")
	validate := fs.Bool("validate", false, "Validate config and exit")
	format := fs.String("format", "yaml", "Output format: yaml, json")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	*configPath = envConfig(*configPath)
	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		if *validate {
			fmt.Fprintf(os.Stderr, "%s Config invalid: %v\n", red("✗"), err)
			os.Exit(1)
		}
		errorf("loading config: %v", err)
	}

	if *validate {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "%s Config valid (%s). Home country %s, store %s.\n",
			green("✓"), *configPath, displayHome(cfg.Analysis.HomeCountry), cfg.Store.Driver)
		os.Exit(0)
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	if parseFormat(*format) == FormatJSON {
		writeJSONOut(w, cfg)
		return
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		errorf("marshaling config: %v", err)
	}
	fmt.Fprint(w, string(data))
}

func displayHome(home string) string {
	if home == "" {
		return "(unset)"
	}
	return home
}

func cmdConfigInit(args []string) {
	fs := flag.NewFlagSet("config-init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Where to write the config (.yaml or .toml)")
	home := fs.String("home", "", "Home country (ISO alpha-2)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	path := envConfig(*configPath)
	if _, err := os.Stat(path); err == nil && !*force {
		errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := core.DefaultConfig()
	if *home != "" {
		cfg.Analysis.HomeCountry = strings.ToUpper(strings.TrimSpace(*home))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		errorf("creating config directory: %v", err)
	}
	if err := core.SaveConfig(cfg, path); err != nil {
		errorf("writing config: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s Wrote %s\n", green("✓"), path)
}

func cmdConfigSet(args []string) {
	fs := flag.NewFlagSet("config-set", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path (YAML only)")
	fs.Parse(args)

	path := envConfig(*configPath)
	remaining := fs.Args()
	if len(remaining) < 2 {
		errorf("usage: breachline config set <key> <value>\n\nExamples:\n  breachline config set analysis.home_country NZ\n  breachline config set analysis.high_risk_countries RU,CN,KP\n  breachline config set logging.level debug")
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		errorf("config set only edits YAML files")
	}
	key, value := remaining[0], remaining[1]

	data, err := os.ReadFile(path)
	if err != nil {
		errorf("reading config: %v", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		errorf("parsing config: %v", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := setNestedValue(raw, strings.Split(key, "."), value); err != nil {
		errorf("setting %s: %v", key, err)
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		errorf("marshaling config: %v", err)
	}
	var check core.Config
	if err := yaml.Unmarshal(out, &check); err != nil {
		errorf("%s = %s does not fit the config schema: %v", key, value, err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		errorf("writing config: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s Set %s = %s in %s\n", green("✓"), bold(key), value, path)
}

func setNestedValue(m map[string]any, path []string, value string) error {
	if len(path) == 0 || path[0] == "" {
		return fmt.Errorf("empty key path")
	}
	if len(path) == 1 {
		m[path[0]] = parseValue(value)
		return nil
	}

	next, ok := m[path[0]]
	if !ok {
		next = map[string]any{}
		m[path[0]] = next
	}
	nextMap, ok := next.(map[string]any)
	if !ok {
		return fmt.Errorf("key %q is not a map", path[0])
	}
	return setNestedValue(nextMap, path[1:], value)
}
