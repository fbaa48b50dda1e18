package main

// ---------------------------------------------------------------------------
// cmd_runs.go: list stored runs and show their findings
// ---------------------------------------------------------------------------

import (
	"context"
	"errors"
	"flag"
	"strconv"
	"time"

	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/store"
)

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path (YAML or TOML)")
	tenant := fs.String("tenant", "", "Only runs for this tenant")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	show := fs.String("show", "", "Run ID whose anomalies and incident to print")
	format := fs.String("format", "table", "Output format: table, json, csv")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}
	st, err := store.OpenConfig(cfg.Store)
	if err != nil {
		errorf("opening store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w, cleanup := outputWriter(*output)
	defer cleanup()
	f := parseFormat(*format)

	if *show != "" {
		anomalies, err := st.Anomalies(ctx, *show)
		if errors.Is(err, store.ErrNotFound) {
			errorf("run %s not found", *show)
		} else if err != nil {
			errorf("reading anomalies: %v", err)
		}
		it, err := st.Incident(ctx, *show)
		if err != nil {
			errorf("reading incident: %v", err)
		}
		if f == FormatJSON {
			writeJSONOut(w, map[string]any{"run_id": *show, "anomalies": anomalies, "incident": it})
			return
		}
		if f == FormatCSV {
			renderAnomalies(w, f, anomalies)
			return
		}
		section(w, "Anomalies")
		renderAnomalies(w, f, anomalies)
		section(w, "Incident")
		renderIncident(w, f, *it)
		return
	}

	runs, err := st.ListRuns(ctx, *tenant, *limit)
	if err != nil {
		errorf("listing runs: %v", err)
	}
	if f == FormatJSON {
		writeJSONOut(w, runs)
		return
	}
	t := NewTable(w, "RUN", "TENANT", "GENERATED", "SIGN-INS", "ANOMALIES", "CONFIDENCE")
	for _, r := range runs {
		conf := string(r.Confidence)
		if f == FormatTable {
			conf = severityColor(conf)
		}
		t.AddRow(r.RunID, r.Tenant, r.GeneratedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(r.Counts.SignIns), strconv.Itoa(r.Anomalies), conf)
	}
	t.Write(f)
}
