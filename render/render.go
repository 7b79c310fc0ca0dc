// Package render turns a resolver collection and its statistics into the
// published artifact family: plain-text IP lists, JSON documents and a CSV
// table. Rendering is pure; writing the artifacts is left to package data.
package render

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"publicresolvers/resolvers"
	"publicresolvers/stats"
)

const (
	// TimestampLayout is the UTC layout stamped into every artifact.
	TimestampLayout = "2006-01-02T15:04:05Z"

	DefaultSourceURL       = "https://dnsdirectory.com"
	DefaultUpdateFrequency = "twice daily"

	topCountriesInSummary = 10
)

// Artifact is one generated file, addressed relative to the output directory
// with forward slashes.
type Artifact struct {
	Path    string
	Content []byte
}

// Options configures a Renderer. Empty strings take the package defaults and
// an empty Timestamp is taken from the clock at New. HighUptimeThreshold is
// used as given; callers start from stats.DefaultHighUptimeThreshold.
type Options struct {
	Timestamp           string
	SourceURL           string
	UpdateFrequency     string
	HighUptimeThreshold float64
	Logger              *slog.Logger
}

// Renderer produces artifacts for one generation run. All artifacts of a run
// share its timestamp.
type Renderer struct {
	opts   Options
	logger *slog.Logger
	warned map[string]bool
}

// New returns a Renderer with defaults applied.
func New(opts Options) *Renderer {
	if opts.Timestamp == "" {
		opts.Timestamp = time.Now().UTC().Format(TimestampLayout)
	}
	if opts.SourceURL == "" {
		opts.SourceURL = DefaultSourceURL
	}
	if opts.UpdateFrequency == "" {
		opts.UpdateFrequency = DefaultUpdateFrequency
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{opts: opts, logger: log, warned: make(map[string]bool)}
}

// Render builds every artifact for rs in a fixed order: global lists,
// per-country lists (IPv4 then IPv6), per-continent lists, the JSON documents
// and finally the CSV table. Identical inputs yield byte-identical output.
func (r *Renderer) Render(rs []resolvers.Resolver, st stats.Statistics) ([]Artifact, error) {
	var out []Artifact
	out = append(out, r.globalLists(rs)...)
	out = append(out, r.countryLists(rs)...)
	out = append(out, r.countryIPv6Lists(rs)...)
	out = append(out, r.continentLists(rs)...)

	docs, err := r.jsonDocuments(rs, st)
	if err != nil {
		return nil, err
	}
	out = append(out, docs...)

	table, err := r.csvTable(rs)
	if err != nil {
		return nil, fmt.Errorf("render: csv: %w", err)
	}
	out = append(out, table)
	return out, nil
}

// group is the records sharing one partition code, in input order.
type group struct {
	code    string
	members []resolvers.Resolver
}

// partition buckets rs by key, skipping records for which keep is false or
// whose key is empty. Codes that are not plain tokens never become file names
// and are skipped with a warning. Groups are returned sorted by code.
func (r *Renderer) partition(rs []resolvers.Resolver, key func(resolvers.Resolver) string, keep func(resolvers.Resolver) bool) []group {
	index := make(map[string]int)
	var groups []group
	for _, res := range rs {
		if keep != nil && !keep(res) {
			continue
		}
		k := key(res)
		if k == "" {
			continue
		}
		if !isPlainCode(k) {
			if !r.warned[k] {
				r.warned[k] = true
				r.logger.Warn("skipping unsafe partition code", "code", k, "ip", res.IP)
			}
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{code: k})
		}
		groups[i].members = append(groups[i].members, res)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].code < groups[b].code })
	return groups
}

// isPlainCode reports whether code consists only of ASCII letters, digits,
// '-' and '_'.
func isPlainCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func byCountry(r resolvers.Resolver) string   { return r.CountryCode }
func byContinent(r resolvers.Resolver) string { return r.ContinentCode }

func filter(rs []resolvers.Resolver, keep func(resolvers.Resolver) bool) []resolvers.Resolver {
	out := make([]resolvers.Resolver, 0, len(rs))
	for _, r := range rs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
