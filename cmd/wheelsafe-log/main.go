// Command wheelsafe-log views and analyzes wheelsafe fault log files.
//
// Fault logs are written by wheelsafe when log.fault_log_path or the
// -fault-log flag is set.
//
// Usage:
//
//	wheelsafe-log <command> [flags] <file.flog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON, JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only faults
//	wheelsafe-log view --category fault session.flog
//
//	# Export one session to CSV
//	wheelsafe-log export --format csv --session 3f2a... session.flog
//
//	# Show statistics
//	wheelsafe-log stats session.flog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/openracing/wheelsafe/cmd/wheelsafe-log/commands"
)

const usage = `wheelsafe-log - wheelsafe Fault Log Analyzer

Usage:
  wheelsafe-log <command> [flags] <file.flog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON, JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "wheelsafe-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the event filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	var opts commands.FilterOptions
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (fault, violation, quarantine, health, state_change)")
	fs.StringVar(&opts.Fault, "fault", "", "Filter by fault type (e.g. THERMAL_LIMIT)")
	fs.StringVar(&opts.Source, "source", "", "Filter by source component or plugin")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return &opts
}

func newFlagSet(name, summary string, extraUsage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "wheelsafe-log %s - %s\n\nUsage:\n  wheelsafe-log %s %s<file.flog>\n\nFlags:\n",
			name, summary, name, extraUsage)
		fs.PrintDefaults()
	}
	return fs
}

// pathArg parses args and returns the log file path, exiting on error.
func pathArg(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View log file in human-readable format", "[flags] ")
	opts := filterFlags(fs)
	path := pathArg(fs, args)

	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fatal(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export log file to JSON, JSONL or CSV format", "[flags] ")
	format := fs.String("format", "jsonl", "Output format (json, jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	opts := filterFlags(fs)
	path := pathArg(fs, args)

	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fatal(err)
	}
	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter log file and write to new file", "-o <out.flog> [flags] ")
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path := pathArg(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fatal(err)
	}
	if err := commands.RunFilter(path, *output, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the log file", "")
	path := pathArg(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fatal(err)
	}
}
