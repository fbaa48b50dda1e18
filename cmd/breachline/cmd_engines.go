package main

// ---------------------------------------------------------------------------
// cmd_engines.go: single-engine commands: baselines, anomalies, timeline,
// incident
// ---------------------------------------------------------------------------

import (
	"flag"

	"github.com/1sec-project/breachline/internal/anomaly"
	"github.com/1sec-project/breachline/internal/timeline"
)

func cmdBaselines(args []string) {
	fs := flag.NewFlagSet("baselines", flag.ExitOnError)
	cf := addCommonFlags(fs)
	suspiciousOnly := fs.Bool("suspicious", false, "Only show users with a suspicious baseline")
	fs.Parse(args)

	e := setup(cf)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()

	baselines := e.analyzer().Baselines(e.loadInput(ctx, *cf.input))
	if *suspiciousOnly {
		for user, b := range baselines {
			if !b.IsSuspicious {
				delete(baselines, user)
			}
		}
	}

	w, cleanup := outputWriter(*cf.output)
	defer cleanup()
	renderBaselines(w, parseFormat(*cf.format), baselines)
}

func cmdAnomalies(args []string) {
	fs := flag.NewFlagSet("anomalies", flag.ExitOnError)
	cf := addCommonFlags(fs)
	groupBy := fs.String("group-by", "", "Aggregate by kind, user, severity or day")
	kinds := fs.String("kind", "", "Comma-separated anomaly kinds to keep")
	fs.Parse(args)

	e := setup(cf)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()

	anomalies := e.analyzer().Anomalies(e.loadInput(ctx, *cf.input))
	if keep := splitList(*kinds); len(keep) > 0 {
		anomalies = filterKinds(anomalies, keep)
	}

	w, cleanup := outputWriter(*cf.output)
	defer cleanup()
	format := parseFormat(*cf.format)

	if *groupBy != "" {
		by := anomaly.GroupBy(*groupBy)
		groups, err := anomaly.Aggregate(anomalies, by)
		if err != nil {
			errorf("%v", err)
		}
		renderGroups(w, format, by, groups)
		return
	}
	renderAnomalies(w, format, anomalies)
}

func filterKinds(anomalies []anomaly.Anomaly, kinds []string) []anomaly.Anomaly {
	want := make(map[anomaly.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[anomaly.Kind(k)] = true
	}
	out := anomalies[:0:0]
	for _, a := range anomalies {
		if want[a.Kind] {
			out = append(out, a)
		}
	}
	return out
}

func cmdTimeline(args []string) {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	cf := addCommonFlags(fs)
	user := fs.String("user", "", "Only events for this user")
	from := fs.String("from", "", "Start bound (RFC3339 or YYYY-MM-DD)")
	to := fs.String("to", "", "End bound (RFC3339 or YYYY-MM-DD, inclusive)")
	phasedOnly := fs.Bool("phased", false, "Only events assigned an attack phase")
	fs.Parse(args)

	filter := timeline.Filter{UserID: *user}
	var err error
	if filter.From, err = timeline.ParseBound(*from, false); err != nil {
		errorf("--from: %v", err)
	}
	if filter.To, err = timeline.ParseBound(*to, true); err != nil {
		errorf("--to: %v", err)
	}

	e := setup(cf)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()

	events := filter.Apply(e.analyzer().Timeline(e.loadInput(ctx, *cf.input)))
	if *phasedOnly {
		kept := events[:0]
		for _, ev := range events {
			if ev.Phase != "" {
				kept = append(kept, ev)
			}
		}
		events = kept
	}

	w, cleanup := outputWriter(*cf.output)
	defer cleanup()
	renderTimeline(w, parseFormat(*cf.format), events)
}

func cmdIncident(args []string) {
	fs := flag.NewFlagSet("incident", flag.ExitOnError)
	cf := addCommonFlags(fs)
	fs.Parse(args)

	e := setup(cf)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()

	a := e.analyzer()
	ds := e.loadInput(ctx, *cf.input)
	it := a.Incident(ds, a.Baselines(ds))

	w, cleanup := outputWriter(*cf.output)
	defer cleanup()
	renderIncident(w, parseFormat(*cf.format), it)
}
