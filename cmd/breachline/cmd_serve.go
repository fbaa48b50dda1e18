package main

// ---------------------------------------------------------------------------
// cmd_serve.go: run the HTTP analysis API until interrupted
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/api"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cf := addCommonFlags(fs)
	host := fs.String("host", "", "Listen address override")
	port := fs.Int("port", 0, "Listen port override")
	persist := fs.Bool("store", false, "Persist /analyze reports and serve /runs")
	publish := fs.Bool("publish", false, "Publish findings to the NATS report bus")
	quiet := fs.Bool("quiet", false, "Suppress banner and non-essential output")
	fs.BoolVar(quiet, "q", false, "Suppress banner and non-essential output")
	fs.Parse(args)

	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	ring := core.NewLogRing(1000)
	e := setup(cf, ring)
	defer e.close()
	if *host != "" {
		e.cfg.Server.Host = *host
	}
	if *port != 0 {
		e.cfg.Server.Port = *port
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []analysis.Option{analysis.WithMetrics(analysis.NewMetrics(reg))}

	if *publish {
		bus, err := core.NewReportBus(&e.cfg.Bus, e.logger)
		if err != nil {
			errorf("connecting to report bus: %v", err)
		}
		defer bus.Close()
		opts = append(opts, analysis.WithPublisher(bus))
	}

	srvOpts := []api.Option{api.WithGatherer(reg), api.WithLogRing(ring)}
	if *persist {
		st, err := store.OpenConfig(e.cfg.Store)
		if err != nil {
			errorf("opening store: %v", err)
		}
		defer st.Close()
		srvOpts = append(srvOpts, api.WithStore(st))
	}

	srv := api.NewServer(e.cfg, e.analyzer(opts...), e.loader, e.logger, srvOpts...)
	if err := srv.Start(); err != nil {
		errorf("starting API server: %v", err)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s breachline API on %s:%d (home %s)\n",
			green("✓"), e.cfg.Server.Host, e.cfg.Server.Port, e.cfg.Analysis.HomeCountry)
		fmt.Fprintf(os.Stderr, "%s Press Ctrl+C to stop\n", dim("▸"))
	}

	ctx, cancel := signalContext()
	defer cancel()
	<-ctx.Done()

	if !*quiet {
		fmt.Fprintf(os.Stderr, "\n%s Shutting down...\n", dim("▸"))
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		warnf("API shutdown: %v", err)
	}
}
