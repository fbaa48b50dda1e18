package main

// ---------------------------------------------------------------------------
// banner.go: banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	text := `
    ┌──────────────────────────────────────────────┐
    │   b r e a c h l i n e                        │
    │   identity compromise forensics              │
    └──────────────────────────────────────────────┘
`
	if !colorEnabled() {
		return text
	}
	return "\033[36m" + text + "\033[0m"
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "breachline v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  breachline <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	for _, c := range commandHelp {
		fmt.Fprintf(w, "  %-14s  %s\n", bold(c.name), c.summary)
	}
	fmt.Fprintf(w, "\n%s\n\n", bold("COMMON FLAGS"))
	fmt.Fprintf(w, "  %-22s  %s\n", "--config <path>", "Config file path (default: configs/default.yaml, env: BREACHLINE_CONFIG)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--input <dir>", "Directory of exported log files")
	fmt.Fprintf(w, "  %-22s  %s\n", "--home <cc>", "Home country override")
	fmt.Fprintf(w, "  %-22s  %s\n", "--format <fmt>", "Output format: table, json, csv (default: table)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--output <file>", "Write output to file")
	fmt.Fprintf(w, "  %-22s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "\n%s\n\n", bold("ENVIRONMENT VARIABLES"))
	fmt.Fprintf(w, "  %-26s  %s\n", "BREACHLINE_CONFIG", "Default config file path")
	fmt.Fprintf(w, "  %-26s  %s\n", "BREACHLINE_HOME_COUNTRY", "Home country override")
	fmt.Fprintf(w, "  %-26s  %s\n", "BREACHLINE_STORE_DSN", "Report store DSN")
	fmt.Fprintf(w, "  %-26s  %s\n", "BREACHLINE_NATS_URL", "Report bus URL")
	fmt.Fprintf(w, "  %-26s  %s\n", "BREACHLINE_GEOIP_DB", "GeoIP2 City database for IP enrichment")
	fmt.Fprintf(w, "  %-26s  %s\n", "BREACHLINE_API_KEY", "API key for serve")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Full analysis of one export"))
	fmt.Fprintf(w, "  breachline analyze --input ./exports/contoso --home AU\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Every tenant under a directory, saved to the store"))
	fmt.Fprintf(w, "  breachline analyze --tenants ./exports --store --format json\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Anomalies per user as CSV"))
	fmt.Fprintf(w, "  breachline anomalies --input ./exports/contoso --group-by user --format csv\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# One user's activity on the detection day"))
	fmt.Fprintf(w, "  breachline timeline --input ./exports/contoso --user alice@contoso.com --from 2024-03-10 --to 2024-03-10\n\n")
	fmt.Fprintf(w, "Run %s for detailed help on any command.\n\n", bold("breachline help <command>"))
}
