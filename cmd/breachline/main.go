package main

// ---------------------------------------------------------------------------
// main.go: command dispatcher for the breachline CLI
//
// Command implementations live in cmd_*.go. Shared helpers are in
// helpers.go, setup.go, output.go, and banner.go.
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var (
	version   = "0.4.0"
	commit    = "dev"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine

	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--version", "-V":
			printVersion(os.Stdout)
			os.Exit(0)
		case "--help", "-h", "help":
			if len(os.Args) >= 3 {
				cmdHelp(os.Args[2])
			} else {
				printUsage(os.Stdout)
			}
			os.Exit(0)
		}
	}

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	subcmd := os.Args[1]
	args := os.Args[2:]

	for _, a := range args {
		if a == "-h" || a == "--help" {
			cmdHelp(subcmd)
			os.Exit(0)
		}
	}

	switch subcmd {
	case "analyze":
		cmdAnalyze(args)
	case "baselines":
		cmdBaselines(args)
	case "anomalies":
		cmdAnomalies(args)
	case "timeline":
		cmdTimeline(args)
	case "incident":
		cmdIncident(args)
	case "runs":
		cmdRuns(args)
	case "serve":
		cmdServe(args)
	case "config":
		cmdConfig(args)
	case "version":
		printVersion(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, red("error: ")+"unknown command %q\n\n", subcmd)
		if s := suggest(subcmd); s != "" {
			fmt.Fprintf(os.Stderr, "       Did you mean %s?\n\n", bold(s))
		}
		printUsage(os.Stderr)
		os.Exit(1)
	}
}
