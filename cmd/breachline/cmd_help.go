package main

// ---------------------------------------------------------------------------
// cmd_help.go: per-command help text
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"
)

type commandInfo struct {
	name    string
	summary string
	usage   string
	flags   [][2]string
}

var commonFlagHelp = [][2]string{
	{"--config <path>", "Config file path (YAML or TOML)"},
	{"--input <dir>", "Directory of exported sign-in/legacy/audit/mailbox files"},
	{"--home <cc>", "Home country override (ISO alpha-2)"},
	{"--format <fmt>", "table, json or csv"},
	{"--output <file>", "Write output to file"},
	{"--log-level <lvl>", "debug, info, warn or error"},
}

var commandHelp = []commandInfo{
	{
		name:    "analyze",
		summary: "Run every engine and print the full report",
		usage:   "breachline analyze --input <dir> | --tenants <root> [flags]",
		flags: [][2]string{
			{"--tenant <name>", "Tenant name for a single --input run (default: default)"},
			{"--tenants <root>", "Analyse each sub-directory as its own tenant"},
			{"--concurrency <n>", "Tenants analysed in parallel (default: 4)"},
			{"--store", "Persist reports to the configured store"},
			{"--publish", "Publish findings to the NATS report bus"},
		},
	},
	{
		name:    "baselines",
		summary: "Per-user geographic baselines",
		usage:   "breachline baselines --input <dir> [--suspicious]",
		flags:   [][2]string{{"--suspicious", "Only users whose primary country is not home"}},
	},
	{
		name:    "anomalies",
		summary: "Impossible travel, legacy auth, stuffing and country anomalies",
		usage:   "breachline anomalies --input <dir> [--group-by kind|user|severity|day]",
		flags: [][2]string{
			{"--group-by <key>", "Aggregate by kind, user, severity or day"},
			{"--kind <list>", "Comma-separated kinds to keep"},
		},
	},
	{
		name:    "timeline",
		summary: "Merged, correlated and phase-tagged event timeline",
		usage:   "breachline timeline --input <dir> [--user <id>] [--from <t>] [--to <t>]",
		flags: [][2]string{
			{"--user <id>", "Only events for this user"},
			{"--from <t>", "Start bound, RFC3339 or YYYY-MM-DD"},
			{"--to <t>", "End bound, inclusive; a bare date means end of that day"},
			{"--phased", "Only events assigned an attack phase"},
		},
	},
	{
		name:    "incident",
		summary: "Attack start, remediation, detection and dwell time",
		usage:   "breachline incident --input <dir>",
	},
	{
		name:    "runs",
		summary: "List stored runs or show one run's findings",
		usage:   "breachline runs [--tenant <name>] [--limit <n>] [--show <run-id>]",
		flags: [][2]string{
			{"--tenant <name>", "Only runs for this tenant"},
			{"--limit <n>", "Maximum runs to list (default: 20)"},
			{"--show <run-id>", "Print the anomalies and incident of one run"},
		},
	},
	{
		name:    "serve",
		summary: "Serve the analysis HTTP API",
		usage:   "breachline serve [--host <addr>] [--port <n>] [--store] [--publish]",
		flags: [][2]string{
			{"--host <addr>", "Listen address override"},
			{"--port <n>", "Listen port override"},
			{"--store", "Persist /analyze reports and enable /runs"},
			{"--publish", "Publish findings to the NATS report bus"},
			{"--quiet, -q", "Suppress banner"},
		},
	},
	{
		name:    "config",
		summary: "Show, validate, initialise, or set configuration",
		usage:   "breachline config [--validate] | config init [--home <cc>] | config set <key> <value>",
		flags: [][2]string{
			{"--validate", "Validate and exit"},
			{"--format <fmt>", "yaml or json"},
		},
	},
	{name: "version", summary: "Print version and build info", usage: "breachline version"},
	{name: "help", summary: "Show help for a command", usage: "breachline help <command>"},
}

// usesCommonFlags reports whether a command accepts the shared analysis flags.
func usesCommonFlags(name string) bool {
	switch name {
	case "analyze", "baselines", "anomalies", "timeline", "incident", "serve":
		return true
	}
	return false
}

func cmdHelp(name string) {
	for _, c := range commandHelp {
		if c.name != name {
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\n\n  %s\n\n", bold(c.name), c.summary)
		fmt.Fprintf(os.Stdout, "%s\n\n  %s\n", bold("USAGE"), c.usage)
		flags := c.flags
		if usesCommonFlags(name) {
			flags = append(append([][2]string{}, flags...), commonFlagHelp...)
		}
		if len(flags) > 0 {
			fmt.Fprintf(os.Stdout, "\n%s\n\n", bold("FLAGS"))
			for _, f := range flags {
				fmt.Fprintf(os.Stdout, "  %-22s  %s\n", f[0], f[1])
			}
		}
		fmt.Fprintln(os.Stdout)
		return
	}

	fmt.Fprintf(os.Stderr, red("error: ")+"unknown command %q\n", name)
	if s := suggest(name); s != "" {
		fmt.Fprintf(os.Stderr, "       Did you mean %s?\n", bold(s))
	}
	os.Exit(1)
}
