package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"publicresolvers/data"
	"publicresolvers/probe"
)

var errNoHealthyResolvers = errors.New("probe: no resolver answered")

var probeFlags struct {
	list        string
	name        string
	qtype       string
	limit       int
	concurrency int
	timeout     time.Duration
	quiet       bool
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Query every resolver of a generated list",
	Long: `Sends one DNS query to each resolver of a list and reports the response code
and round-trip time. --list accepts a file path, a path relative to the output
directory, or an http(s) URL.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	f := probeCmd.Flags()
	f.StringVar(&probeFlags.list, "list", filepath.Join("resolvers", "global", "trusted.txt"), "resolver list to probe")
	f.StringVar(&probeFlags.name, "name", "example.com", "name to resolve")
	f.StringVar(&probeFlags.qtype, "type", "A", "record type to query")
	f.IntVar(&probeFlags.limit, "limit", 0, "probe at most this many resolvers (0 = all)")
	f.IntVar(&probeFlags.concurrency, "concurrency", probe.DefaultConcurrency, "queries in flight")
	f.DurationVar(&probeFlags.timeout, "timeout", probe.DefaultTimeout, "per-query timeout")
	f.BoolVar(&probeFlags.quiet, "quiet", false, "print the summary only")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg).With("component", "probe")

	qtype, err := probe.ParseType(probeFlags.qtype)
	if err != nil {
		return err
	}
	location := listLocation(probeFlags.list, cfg.OutputDir)
	servers, err := data.LoadIPList(cmd.Context(), location)
	if err != nil {
		return err
	}
	if probeFlags.limit > 0 && len(servers) > probeFlags.limit {
		servers = servers[:probeFlags.limit]
	}
	log.Info("probing resolvers", "list", location, "count", len(servers), "name", probeFlags.name, "type", probeFlags.qtype)

	prober := probe.New(probe.Options{Timeout: probeFlags.timeout, Concurrency: probeFlags.concurrency})
	results := prober.Probe(cmd.Context(), servers, probeFlags.name, qtype)
	if !probeFlags.quiet {
		printResults(cmd.OutOrStdout(), results)
	}
	report := probe.Summarize(results)
	fmt.Fprintf(cmd.OutOrStdout(), "%d probed: %d healthy, %d failed, %d invalid\n",
		report.Total, report.Healthy, report.Failed, report.Invalid)
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if report.Total > 0 && report.Healthy == 0 {
		return errNoHealthyResolvers
	}
	return nil
}

// listLocation resolves a relative list path against the output directory
// when it does not exist relative to the working directory.
func listLocation(list, outputDir string) string {
	if isURL(list) || filepath.IsAbs(list) || outputDir == "" || fileExists(list) {
		return list
	}
	return filepath.Join(outputDir, list)
}

func printResults(w io.Writer, results []probe.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tRCODE\tANSWERS\tRTT\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Server, r.RcodeString(), r.Answers, r.RTT.Round(time.Millisecond), errText)
	}
	tw.Flush()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
