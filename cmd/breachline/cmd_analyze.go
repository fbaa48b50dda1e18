package main

// ---------------------------------------------------------------------------
// cmd_analyze.go: full analysis of one export directory or many tenants
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/store"
)

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cf := addCommonFlags(fs)
	tenants := fs.String("tenants", "", "Root directory with one sub-directory per tenant")
	tenant := fs.String("tenant", "default", "Tenant name for a single --input run")
	concurrency := fs.Int("concurrency", 4, "Tenants analysed in parallel")
	persist := fs.Bool("store", false, "Persist reports to the configured store")
	publish := fs.Bool("publish", false, "Publish anomalies and incidents to the NATS report bus")
	fs.Parse(args)

	e := setup(cf)
	defer e.close()

	ctx, cancel := signalContext()
	defer cancel()

	var opts []analysis.Option
	if *publish {
		bus, err := core.NewReportBus(&e.cfg.Bus, e.logger)
		if err != nil {
			errorf("connecting to report bus: %v", err)
		}
		defer bus.Close()
		opts = append(opts, analysis.WithPublisher(bus))
	}
	a := e.analyzer(opts...)

	var st *store.Store
	if *persist {
		var err error
		if st, err = store.OpenConfig(e.cfg.Store); err != nil {
			errorf("opening store: %v", err)
		}
		defer st.Close()
	}

	w, cleanup := outputWriter(*cf.output)
	defer cleanup()
	format := parseFormat(*cf.format)

	if *tenants != "" {
		datasets, stats, err := e.loader.LoadTenants(ctx, *tenants)
		if err != nil {
			errorf("loading tenants from %s: %v", *tenants, err)
		}
		for name, s := range stats {
			if n := s.TotalInvalid(); n > 0 {
				warnf("%s: %d invalid row(s) skipped", name, n)
			}
		}
		reports, err := a.RunTenants(ctx, datasets, *concurrency)
		if err != nil {
			errorf("analysis failed: %v", err)
		}
		if st != nil {
			for name, r := range reports {
				if _, err := st.SaveReport(ctx, name, r); err != nil {
					errorf("saving report for %s: %v", name, err)
				}
			}
		}
		renderTenants(w, format, reports)
		return
	}

	ds := e.loadInput(ctx, *cf.input)
	r, err := a.Run(ctx, *tenant, ds)
	if err != nil {
		errorf("analysis failed: %v", err)
	}
	if st != nil {
		if _, err := st.SaveReport(ctx, *tenant, r); err != nil {
			errorf("saving report: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s Saved run %s\n", green("✓"), r.RunID)
	}
	renderReport(w, format, r)
}
