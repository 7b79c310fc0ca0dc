package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// sleepRecorder records every requested delay without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func record(ip string, online bool, country string) string {
	return fmt.Sprintf(`{"dns_server_ip_address":%q,"dns_server_ip_address_version":4,"dns_server_is_online":%t,"country_id":%q}`, ip, online, country)
}

func pageJSON(records ...string) string {
	return `{"data":[` + strings.Join(records, ",") + `]}`
}

func newTestClient(srv *httptest.Server, perPage int, rec *sleepRecorder) *Client {
	c := New(Options{
		Endpoint:       srv.URL + "/api/v1/dns-servers",
		PerPage:        perPage,
		MaxRetries:     3,
		RetryDelay:     30 * time.Second,
		RequestTimeout: 5 * time.Second,
		PageDelay:      time.Second,
		HTTPClient:     srv.Client(),
	}, nil)
	return c.WithSleep(rec.sleep)
}

func TestFetchAll_PaginatesAndFiltersOnline(t *testing.T) {
	pages := map[string]string{
		"1": pageJSON(record("1.1.1.1", true, "US"), record("10.0.0.1", false, "US")),
		"2": pageJSON(record("9.9.9.9", true, "CH")),
	}
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		seen = append(seen, q.Get("page"))
		mu.Unlock()
		if q.Get("dns_server_is_online") != "true" || q.Get("per_page") != "2" || q.Get("sort_by") != "country_id" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, pages[q.Get("page")])
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	got, err := newTestClient(srv, 2, rec).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 2 || got[0].IP != "1.1.1.1" || got[1].IP != "9.9.9.9" {
		t.Fatalf("FetchAll = %+v, want 1.1.1.1 then 9.9.9.9", got)
	}
	if strings.Join(seen, ",") != "1,2" {
		t.Errorf("pages requested = %v, want [1 2]", seen)
	}
	if rec.total() != time.Second {
		t.Errorf("total delay = %v, want one page delay of 1s", rec.total())
	}
}

func TestFetchAll_ExactMultipleRequestsEmptyPage(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, pageJSON(record("1.1.1.1", true, "US"), record("1.0.0.1", true, "US")))
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv, 2, &sleepRecorder{}).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("requests = %d, want 2 (one trailing empty page)", n)
	}
}

func TestFetchAll_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, pageJSON(record("8.8.8.8", true, "US")))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	got, err := newTestClient(srv, 1000, rec).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if want := 2 * 30 * time.Second; rec.total() != want {
		t.Errorf("total retry delay = %v, want %v", rec.total(), want)
	}
}

func TestFetchAll_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	_, err := newTestClient(srv, 1000, rec).FetchAll(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.Page != 1 || te.Attempts != 3 {
		t.Errorf("TransportError = %+v", te)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Errorf("wrapped StatusError = %+v", se)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if want := 60 * time.Second; rec.total() != want {
		t.Errorf("total retry delay = %v, want %v (no delay after last attempt)", rec.total(), want)
	}
}

func TestFetchAll_InvalidJSONIsRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			fmt.Fprint(w, `<html>maintenance</html>`)
			return
		}
		fmt.Fprint(w, pageJSON(record("1.1.1.1", true, "US"), `"garbage"`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv, 1000, &sleepRecorder{}).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 (non-object record skipped)", len(got))
	}
}

func TestFetchAll_SkipsRecordsWithoutAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageJSON(
			record("", true, "US"),
			record("  ", true, "US"),
			`{"dns_server_is_online":true,"country_id":"DE"}`,
			record("9.9.9.9", true, "CH"),
		))
	}))
	defer srv.Close()

	got, err := newTestClient(srv, 1000, &sleepRecorder{}).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 1 || got[0].IP != "9.9.9.9" {
		t.Errorf("got %+v, want only 9.9.9.9", got)
	}
}

func TestFetchAll_RequestTimeoutIsRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		fmt.Fprint(w, pageJSON(record("1.1.1.1", true, "US")))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := New(Options{
		Endpoint:       srv.URL,
		PerPage:        1000,
		MaxRetries:     3,
		RetryDelay:     30 * time.Second,
		RequestTimeout: 50 * time.Millisecond,
		HTTPClient:     srv.Client(),
	}, nil).WithSleep(rec.sleep)

	start := time.Now()
	got, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("FetchAll took %v, request timeout not applied", elapsed)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
	if want := 30 * time.Second; rec.total() != want {
		t.Errorf("total retry delay = %v, want %v", rec.total(), want)
	}
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(srv, 1000, &sleepRecorder{}).WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	_, err := c.FetchAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{Endpoint: "https://example.test"}, nil)
	if c.opts.PerPage != DefaultPerPage || c.opts.MaxRetries != DefaultMaxRetries || c.opts.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("defaults not applied: %+v", c.opts)
	}
	u, err := c.pageURL(3)
	if err != nil {
		t.Fatalf("pageURL: %v", err)
	}
	if !strings.Contains(u, "page=3") || !strings.Contains(u, "per_page="+strconv.Itoa(DefaultPerPage)) {
		t.Errorf("pageURL = %q", u)
	}
}
