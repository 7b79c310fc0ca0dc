// Package pipeline runs one generation: fetch every online resolver, compute
// statistics, render the artifacts and write them to the output directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"publicresolvers/config"
	"publicresolvers/data"
	"publicresolvers/fetcher"
	"publicresolvers/logger"
	"publicresolvers/render"
	"publicresolvers/stats"
)

// ErrEmptyResult is returned when the API yielded no online resolvers. No
// artifact is written in that case.
var ErrEmptyResult = errors.New("pipeline: no resolvers fetched from API")

// Deps carries the collaborators of a run. Zero values select real
// implementations.
type Deps struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Now        func() time.Time
	Sleep      fetcher.SleepFunc
}

// Summary describes a successful run.
type Summary struct {
	Timestamp string
	Totals    stats.Totals
	Artifacts int
	OutputDir string
	Commit    string
}

// Run executes the pipeline with cfg. Configuration problems are reported
// before any network activity; artifacts are only written once the fetch has
// completed with at least one resolver.
func Run(ctx context.Context, cfg config.Config, deps Deps) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timestamp := now().UTC().Format(render.TimestampLayout)

	client := fetcher.New(fetcher.Options{
		Endpoint:       cfg.APIEndpoint,
		PerPage:        cfg.PerPage,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		RequestTimeout: cfg.RequestTimeout(),
		PageDelay:      cfg.PageDelay(),
		HTTPClient:     deps.HTTPClient,
	}, log.With("component", "fetcher")).WithSleep(deps.Sleep)

	rs, err := client.FetchAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("pipeline: fetch: %w", err)
	}
	if len(rs) == 0 {
		return Summary{}, ErrEmptyResult
	}

	st := stats.Compute(rs, stats.Options{Timestamp: timestamp, HighUptimeThreshold: cfg.HighUptimeThreshold})
	artifacts, err := render.New(render.Options{
		Timestamp:           timestamp,
		SourceURL:           cfg.SourceURL,
		UpdateFrequency:     cfg.UpdateFrequency,
		HighUptimeThreshold: cfg.HighUptimeThreshold,
		Logger:              log.With("component", "render"),
	}).Render(rs, st)
	if err != nil {
		return Summary{}, err
	}
	log.Info("writing artifacts", "count", len(artifacts), "output_dir", cfg.OutputDir)
	if err := data.WriteArtifacts(cfg.OutputDir, artifacts); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Timestamp: timestamp,
		Totals:    st.Totals,
		Artifacts: len(artifacts),
		OutputDir: cfg.OutputDir,
	}
	if cfg.Git.Commit {
		hash, err := data.CommitArtifacts(cfg.OutputDir, artifacts, data.CommitOptions{
			Message:     data.CommitMessage(timestamp),
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			When:        now(),
		})
		switch {
		case errors.Is(err, data.ErrNothingToCommit):
			log.Info("artifacts unchanged, nothing to commit")
		case err != nil:
			return summary, err
		default:
			log.Info("committed artifacts", "commit", hash)
			summary.Commit = hash
		}
	}

	log.Info("generation complete",
		"servers", st.Totals.Servers,
		"ipv4", st.Totals.IPv4,
		"ipv6", st.Totals.IPv6,
		"countries", st.Totals.Countries,
		"continents", st.Totals.Continents,
		"artifacts", len(artifacts),
	)
	return summary, nil
}
