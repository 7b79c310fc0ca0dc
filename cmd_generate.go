package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"publicresolvers/config"
	"publicresolvers/pipeline"
)

var generateFlags struct {
	endpoint       string
	maxRetries     int
	retryDelay     int
	timeout        int
	perPage        int
	rateLimitDelay float64
	highUptime     float64
	output         string
	commit         bool
	logLevel       string
	logDir         string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch online resolvers and write every list and document",
	Long: `Fetches all online resolvers page by page, aggregates statistics and writes
resolvers/ and data/ under the output directory. With --commit the written
files are committed to the git repository that contains the output directory.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.endpoint, "endpoint", "", "resolver API endpoint ("+config.EnvAPIEndpoint+")")
	f.IntVar(&generateFlags.maxRetries, "max-retries", config.DefaultMaxRetries, "attempts per page")
	f.IntVar(&generateFlags.retryDelay, "retry-delay", config.DefaultRetryDelaySeconds, "seconds between attempts")
	f.IntVar(&generateFlags.timeout, "timeout", config.DefaultRequestTimeoutSeconds, "per-request timeout in seconds")
	f.IntVar(&generateFlags.perPage, "per-page", config.DefaultPerPage, "records requested per page")
	f.Float64Var(&generateFlags.rateLimitDelay, "rate-limit-delay", config.DefaultRateLimitDelaySeconds, "seconds to wait between pages")
	f.Float64Var(&generateFlags.highUptime, "high-uptime", config.DefaultHighUptimeThreshold, "30-day uptime percentage for high-uptime.txt")
	f.StringVar(&generateFlags.output, "output", "", "output directory (default current directory)")
	f.BoolVar(&generateFlags.commit, "commit", false, "commit the written artifacts to git")
	f.StringVar(&generateFlags.logLevel, "log-level", "", "debug, info, warn, error or none")
	f.StringVar(&generateFlags.logDir, "log-dir", "", "also write JSON logs to this directory")
}

// applyGenerateFlags copies the flags the user set explicitly onto cfg.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("endpoint") {
		cfg.APIEndpoint = generateFlags.endpoint
	}
	if f.Changed("max-retries") {
		cfg.MaxRetries = generateFlags.maxRetries
	}
	if f.Changed("retry-delay") {
		cfg.RetryDelaySeconds = generateFlags.retryDelay
	}
	if f.Changed("timeout") {
		cfg.RequestTimeoutSeconds = generateFlags.timeout
	}
	if f.Changed("per-page") {
		cfg.PerPage = generateFlags.perPage
	}
	if f.Changed("rate-limit-delay") {
		cfg.RateLimitDelaySeconds = generateFlags.rateLimitDelay
	}
	if f.Changed("high-uptime") {
		cfg.HighUptimeThreshold = generateFlags.highUptime
	}
	if f.Changed("output") {
		cfg.OutputDir = generateFlags.output
	}
	if f.Changed("commit") {
		cfg.Git.Commit = generateFlags.commit
	}
	if f.Changed("log-level") {
		cfg.Log.Severity = generateFlags.logLevel
	}
	if f.Changed("log-dir") {
		cfg.Log.Dir = generateFlags.logDir
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, cfg)
	log := newLogger(cfg)

	summary, err := pipeline.Run(cmd.Context(), *cfg, pipeline.Deps{Logger: log})
	if err != nil {
		switch {
		case errors.Is(err, config.ErrMissingEndpoint), errors.Is(err, config.ErrInvalid):
			log.Error("configuration error", "error", err)
		case errors.Is(err, pipeline.ErrEmptyResult):
			log.Error("no resolvers returned", "error", err)
		default:
			log.Error("generation failed", "error", err)
		}
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "Generated %d artifacts in %s at %s\n", s.Artifacts, displayDir(s.OutputDir), s.Timestamp)
	fmt.Fprintf(w, "  servers:       %d (IPv4 %d, IPv6 %d)\n", s.Totals.Servers, s.Totals.IPv4, s.Totals.IPv6)
	fmt.Fprintf(w, "  countries:     %d\n", s.Totals.Countries)
	fmt.Fprintf(w, "  continents:    %d\n", s.Totals.Continents)
	fmt.Fprintf(w, "  organizations: %d\n", s.Totals.Organizations)
	if s.Commit != "" {
		fmt.Fprintf(w, "  commit:        %s\n", s.Commit)
	}
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
