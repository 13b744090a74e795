// Command lbanalyzer counts client addresses in a directory of load balancer
// access logs, enriches the busiest ones and writes them to a CSV report.
//
// Usage:
//
//	LOGDIR=/var/log/lb IPINFO_TOKEN=... lbanalyzer
//	lbanalyzer --logdir ./logs --provider whois --limit 5
//	lbanalyzer --config lbanalyzer.yaml
package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/oversize/lbanalyzer"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"config":    "config",
	"logdir":    "logdir",
	"out":       "out",
	"threshold": "threshold",
	"limit":     "limit",
	"provider":  "provider",
	"header":    "header",
	"timeout":   "timeout",
	"ignore":    "ignore",
	"log-level": "log.level",
	"log-file":  "log.file",
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := lbanalyzer.NewViper()
	cmd := &cobra.Command{
		Use:   "lbanalyzer",
		Short: "Count and enrich client addresses in load balancer access logs",
		Long: `lbanalyzer reads every file in the log directory, takes the client address
from the fourth field of each line, and counts how often each address occurs.
Addresses seen more often than the threshold are sorted by count; the top ones
are looked up with the selected provider. The result is written as CSV and a
summary line is printed.

Report rows are address,count,country,city,hostname,org with no space after
a comma and no trailing comma. Fields holding a comma or a quote are quoted
(RFC 4180), and unknown fields are written as "-". Earlier versions of this
report put a space after every comma and ended each row with one; adjust any
script that splits on ", ".

LOGDIR names the log directory and IPINFO_TOKEN holds the ipinfo.io token.
Every other setting can also be given as LBANALYZER_<KEY>, for example
LBANALYZER_THRESHOLD=50.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := lbanalyzer.LoadConfig(v)
			if err != nil {
				return err
			}
			log, closer, err := lbanalyzer.NewLogger(cfg.Log, stderr)
			if err != nil {
				return err
			}
			defer closer.Close()
			_, err = lbanalyzer.Run(cmd.Context(), cfg, log, stdout)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.String("config", "", "read settings from this YAML, TOML or JSON file")
	f.String("logdir", "", "directory holding the load balancer log files (env LOGDIR)")
	f.StringP("out", "o", lbanalyzer.DefaultOutput, "CSV report to write, replaced if it exists")
	f.Int("threshold", lbanalyzer.DefaultThreshold, "report addresses seen more than this many times")
	f.Int("limit", lbanalyzer.DefaultEnrichLimit, "look up this many of the top addresses (10 for whois unless set)")
	f.String("provider", lbanalyzer.ProviderIPInfo, "lookup provider: ipinfo, whois, geoip or none")
	f.Bool("header", false, "write a header row")
	f.Duration("timeout", lbanalyzer.DefaultTimeout, "timeout for each lookup")
	f.StringSlice("ignore", nil, "CIDR networks whose addresses are not counted (repeatable)")
	f.String("log-level", "info", "log level: debug, info, warn or error")
	f.String("log-file", "", "write logs to this file, rotated by size, instead of stderr")
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}
