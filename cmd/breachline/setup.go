package main

// ---------------------------------------------------------------------------
// setup.go: shared flags and the config → logger → loader → analyzer wiring
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/geo"
	"github.com/1sec-project/breachline/internal/ingest"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "configs/default.yaml"

// commonFlags are accepted by every analysis command.
type commonFlags struct {
	config   *string
	input    *string
	format   *string
	output   *string
	home     *string
	logLevel *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:   fs.String("config", defaultConfigPath, "Config file path (YAML or TOML)"),
		input:    fs.String("input", "", "Directory of exported sign-in/legacy/audit/mailbox files"),
		format:   fs.String("format", "table", "Output format: table, json, csv"),
		output:   fs.String("output", "", "Write output to file"),
		home:     fs.String("home", "", "Home country override (ISO alpha-2)"),
		logLevel: fs.String("log-level", "", "Log level override: debug, info, warn, error"),
	}
}

// env is everything a command needs after flag parsing.
type env struct {
	cfg      *core.Config
	logger   zerolog.Logger
	loader   *ingest.Loader
	locator  *geo.IPLocator
	resolver *geo.Resolver
}

func (e *env) close() {
	if e.locator != nil {
		e.locator.Close()
	}
}

// setup loads and validates config, then builds the logger and loader. Log
// lines are also captured in ring when one is given.
func setup(cf commonFlags, ring ...*core.LogRing) *env {
	cfg, err := core.LoadConfig(envConfig(*cf.config))
	if err != nil {
		errorf("loading config: %v", err)
	}
	if *cf.home != "" {
		cfg.Analysis.HomeCountry = strings.ToUpper(strings.TrimSpace(*cf.home))
	}
	if *cf.logLevel != "" {
		cfg.Logging.Level = *cf.logLevel
	}
	if err := cfg.Validate(); err != nil {
		errorf("%v", err)
	}

	e := &env{cfg: cfg, logger: core.NewLogger(cfg.Logging, ring...)}
	e.resolver = geo.NewResolver(geo.WithCacheSize(cfg.Geo.CacheSize))

	opts := ingest.Options{Logger: e.logger}
	if cfg.Geo.CityDBPath != "" {
		loc, err := geo.OpenIPLocator(cfg.Geo.CityDBPath)
		if err != nil {
			warnf("GeoIP enrichment disabled: %v", err)
		} else {
			e.locator = loc
			opts.Locator = loc
		}
	}
	if e.loader, err = ingest.NewLoader(opts); err != nil {
		errorf("initialising loader: %v", err)
	}
	return e
}

func (e *env) analyzer(opts ...analysis.Option) *analysis.Analyzer {
	return analysis.New(e.cfg.Analysis, e.logger, append([]analysis.Option{analysis.WithResolver(e.resolver)}, opts...)...)
}

// loadInput reads the --input directory, exiting on failure.
func (e *env) loadInput(ctx context.Context, dir string) *core.Dataset {
	if dir == "" {
		errorf("--input is required")
	}
	ds, stats, err := e.loader.LoadDir(ctx, dir)
	if err != nil {
		errorf("loading %s: %v", dir, err)
	}
	if n := stats.TotalInvalid(); n > 0 {
		warnf("%d invalid row(s) skipped in %s", n, dir)
	}
	return ds
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
