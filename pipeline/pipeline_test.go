package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/google/go-cmp/cmp"

	"publicresolvers/config"
	"publicresolvers/data"
	"publicresolvers/fetcher"
	"publicresolvers/stats"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC) }

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

const threeRecords = `{"data":[
	{"dns_server_ip_address":"8.8.8.8","dns_server_ip_address_version":4,"dns_server_is_online":true,"country_id":"US","country_name":"United States","continent_id":"NA","continent_name":"North America","dns_server_is_trusted":true,"dns_server_uptime_30d":99.9},
	{"dns_server_ip_address":"4.2.2.2","dns_server_ip_address_version":4,"dns_server_is_online":true,"country_id":"US","country_name":"United States","continent_id":"NA","continent_name":"North America","dns_server_uptime_30d":"97.5"},
	{"dns_server_ip_address":"9.9.9.9","dns_server_ip_address_version":4,"dns_server_is_online":true,"country_id":"DE","country_name":"Germany","continent_id":"EU","continent_name":"Europe"},
	{"dns_server_ip_address":"10.0.0.1","dns_server_ip_address_version":4,"dns_server_is_online":false,"country_id":"US"}
]}`

func testConfig(endpoint, out string) config.Config {
	cfg := config.Default()
	cfg.APIEndpoint = endpoint
	cfg.OutputDir = out
	return cfg
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return files
}

func TestRun_WritesArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeRecords)
	}))
	defer srv.Close()

	out := t.TempDir()
	summary, err := Run(context.Background(), testConfig(srv.URL, out), Deps{HTTPClient: srv.Client(), Now: fixedNow, Sleep: noSleep})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantTotals := stats.Totals{Servers: 3, IPv4: 3, Countries: 2, Continents: 2}
	if diff := cmp.Diff(wantTotals, summary.Totals); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
	if summary.Timestamp != "2026-03-01T06:00:00Z" || summary.Commit != "" {
		t.Errorf("summary = %+v", summary)
	}
	if got := len(entries(t, out)); got != summary.Artifacts {
		t.Errorf("files on disk = %d, summary reports %d", got, summary.Artifacts)
	}

	us, err := data.ReadIPList(filepath.Join(out, "resolvers", "by-country", "US.txt"))
	if err != nil {
		t.Fatalf("US.txt: %v", err)
	}
	if diff := cmp.Diff([]string{"4.2.2.2", "8.8.8.8"}, us); diff != "" {
		t.Errorf("US.txt mismatch (-want +got):\n%s", diff)
	}
	trusted, err := data.ReadIPList(filepath.Join(out, "resolvers", "global", "trusted.txt"))
	if err != nil {
		t.Fatalf("trusted.txt: %v", err)
	}
	if diff := cmp.Diff([]string{"8.8.8.8"}, trusted); diff != "" {
		t.Errorf("trusted.txt mismatch (-want +got):\n%s", diff)
	}
	doc, err := data.LoadFromJSON[struct {
		Metadata struct {
			TotalServers int `json:"total_servers"`
		} `json:"metadata"`
	}](filepath.Join(out, "data", "by-country", "US.json"))
	if err != nil {
		t.Fatalf("US.json: %v", err)
	}
	if doc.Metadata.TotalServers != 2 {
		t.Errorf("US.json total_servers = %d, want 2", doc.Metadata.TotalServers)
	}
}

func TestRun_EmptyResultWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	out := t.TempDir()
	_, err := Run(context.Background(), testConfig(srv.URL, out), Deps{HTTPClient: srv.Client(), Now: fixedNow, Sleep: noSleep})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if files := entries(t, out); len(files) != 0 {
		t.Errorf("artifacts written on empty result: %v", files)
	}
}

func TestRun_TransportFailureWritesNothing(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var slept time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept += d
		return nil
	}
	out := t.TempDir()
	_, err := Run(context.Background(), testConfig(srv.URL, out), Deps{HTTPClient: srv.Client(), Now: fixedNow, Sleep: sleep})
	if !errors.Is(err, fetcher.ErrTransport) {
		t.Fatalf("err = %v, want fetcher.ErrTransport", err)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if slept != 60*time.Second {
		t.Errorf("retry delay = %v, want 60s", slept)
	}
	if files := entries(t, out); len(files) != 0 {
		t.Errorf("artifacts written after transport failure: %v", files)
	}
}

func TestRun_MissingEndpointFailsBeforeNetwork(t *testing.T) {
	cfg := testConfig("", t.TempDir())
	_, err := Run(context.Background(), cfg, Deps{})
	if !errors.Is(err, config.ErrMissingEndpoint) {
		t.Errorf("err = %v, want ErrMissingEndpoint", err)
	}
}

func TestRun_CommitsWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeRecords)
	}))
	defer srv.Close()

	out := t.TempDir()
	if _, err := git.PlainInit(out, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	cfg := testConfig(srv.URL, out)
	cfg.Git.Commit = true
	deps := Deps{HTTPClient: srv.Client(), Now: fixedNow, Sleep: noSleep}

	first, err := Run(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(first.Commit) != 40 {
		t.Errorf("commit hash = %q", first.Commit)
	}
	second, err := Run(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Commit != "" {
		t.Errorf("identical rerun committed %s", second.Commit)
	}
	if !strings.HasPrefix(first.Timestamp, "2026-03-01") {
		t.Errorf("timestamp = %q", first.Timestamp)
	}
}

func TestRun_UnsafeCountryCodeStaysInsideOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"dns_server_ip_address":"8.8.8.8","dns_server_is_online":true,"country_id":"../../../escaped","continent_id":"NA"}]}`)
	}))
	defer srv.Close()

	parent := filepath.Join(t.TempDir(), "a", "b")
	out := filepath.Join(parent, "out")
	summary, err := Run(context.Background(), testConfig(srv.URL, out), Deps{HTTPClient: srv.Client(), Now: fixedNow, Sleep: noSleep})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Totals.Servers != 1 {
		t.Errorf("servers = %d, want 1", summary.Totals.Servers)
	}
	for _, path := range entries(t, filepath.Dir(filepath.Dir(parent))) {
		rel, err := filepath.Rel(out, path)
		if err != nil || !filepath.IsLocal(rel) {
			t.Errorf("artifact written outside output dir: %s", path)
		}
	}
}

func TestRun_ZeroHighUptimeThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeRecords)
	}))
	defer srv.Close()

	out := t.TempDir()
	cfg := testConfig(srv.URL, out)
	cfg.HighUptimeThreshold = 0
	if _, err := Run(context.Background(), cfg, Deps{HTTPClient: srv.Client(), Now: fixedNow, Sleep: noSleep}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := data.ReadIPList(filepath.Join(out, "resolvers", "global", "high-uptime.txt"))
	if err != nil {
		t.Fatalf("high-uptime.txt: %v", err)
	}
	if diff := cmp.Diff([]string{"4.2.2.2", "8.8.8.8", "9.9.9.9"}, got); diff != "" {
		t.Errorf("high-uptime.txt mismatch (-want +got):\n%s", diff)
	}
}
