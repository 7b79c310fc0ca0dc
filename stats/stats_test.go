package stats

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"publicresolvers/resolvers"
)

func sample() []resolvers.Resolver {
	return []resolvers.Resolver{
		{IP: "8.8.8.8", Version: 4, CountryCode: "US", Country: "United States", ContinentCode: "NA", Continent: "North America", Organization: "Google", Trusted: true, DNSSECValidating: true, Uptime30d: 99.9},
		{IP: "1.1.1.1", Version: 4, CountryCode: "US", Country: "USA", ContinentCode: "NA", Continent: "N. America", Organization: "Cloudflare", Anycast: true, Uptime30d: 99.0},
		{IP: "2a01::1", Version: 6, CountryCode: "DE", Country: "Germany", ContinentCode: "EU", Continent: "Europe", Organization: "Google", AdBlocking: true, Uptime30d: 98.9},
		{IP: "5.5.5.5", Version: 4, Organization: "", MalwareBlocking: true, AdultBlocking: true},
	}
}

func TestCompute_Totals(t *testing.T) {
	st := Compute(sample(), Options{Timestamp: "2026-01-02T03:04:05Z", HighUptimeThreshold: DefaultHighUptimeThreshold})

	wantTotals := Totals{Servers: 4, IPv4: 3, IPv6: 1, Countries: 2, Continents: 2, Organizations: 2}
	if diff := cmp.Diff(wantTotals, st.Totals); diff != "" {
		t.Errorf("Totals mismatch (-want +got):\n%s", diff)
	}
	wantFeatures := Features{
		Online: 4, Trusted: 1, DNSSECValidating: 1, AdBlocking: 1, MalwareBlocking: 1,
		AdultBlocking: 1, Anycast: 1, HighUptime30d: 2,
	}
	if diff := cmp.Diff(wantFeatures, st.Features); diff != "" {
		t.Errorf("Features mismatch (-want +got):\n%s", diff)
	}
	if st.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("Timestamp = %q", st.Timestamp)
	}
}

func TestCompute_ContinentSumMatchesCodedRecords(t *testing.T) {
	rs := sample()
	st := Compute(rs, Options{})
	coded := 0
	for _, r := range rs {
		if r.ContinentCode != "" {
			coded++
		}
	}
	sum := 0
	for _, c := range st.ByContinent {
		sum += c.Count
	}
	if sum != coded {
		t.Errorf("sum of continent counts = %d, want %d", sum, coded)
	}
}

func TestCompute_Names(t *testing.T) {
	st := Compute(sample(), Options{})
	if got := st.ByContinent["NA"].Name; got != "N. America" {
		t.Errorf("continent name = %q, want last seen %q", got, "N. America")
	}
	if got := st.ByCountry[0]; got.Code != "US" || got.Name != "United States" || got.Count != 2 {
		t.Errorf("top country = %+v, want US / United States / 2", got)
	}
}

func TestCompute_Empty(t *testing.T) {
	st := Compute(nil, Options{})
	if st.Totals != (Totals{}) || st.Features != (Features{}) {
		t.Errorf("non-zero counts for empty input: %+v %+v", st.Totals, st.Features)
	}
	if st.ByContinent == nil || len(st.ByContinent) != 0 {
		t.Errorf("ByContinent = %#v, want empty map", st.ByContinent)
	}
	if st.ByCountry == nil || st.TopOrganizations == nil {
		t.Error("ranking slices should be non-nil")
	}
	out, err := json.Marshal(st.ByCountry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != "{}" {
		t.Errorf("empty ranking marshals to %s, want {}", out)
	}
}

func TestCompute_RankingOrderAndTies(t *testing.T) {
	var rs []resolvers.Resolver
	add := func(cc string, n int) {
		for i := 0; i < n; i++ {
			rs = append(rs, resolvers.Resolver{Version: 4, CountryCode: cc, Country: cc})
		}
	}
	add("FR", 1)
	add("JP", 3)
	add("BR", 1)
	add("CA", 3)

	st := Compute(rs, Options{})
	var got []string
	for i, c := range st.ByCountry {
		got = append(got, c.Code)
		if i > 0 && c.Count > st.ByCountry[i-1].Count {
			t.Errorf("ranking not non-increasing at %d: %+v", i, st.ByCountry)
		}
	}
	want := []string{"JP", "CA", "FR", "BR"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking order mismatch (-want +got):\n%s", diff)
	}
	if top := st.TopCountries(2); len(top) != 2 || top[1].Code != "CA" {
		t.Errorf("TopCountries(2) = %+v", top)
	}
	if top := st.TopCountries(10); len(top) != 4 {
		t.Errorf("TopCountries(10) len = %d, want 4", len(top))
	}
	if top := st.TopCountries(-1); len(top) != 0 {
		t.Errorf("TopCountries(-1) = %+v, want empty", top)
	}
}

func TestCompute_TopOrganizationsCapped(t *testing.T) {
	var rs []resolvers.Resolver
	for i := 0; i < 30; i++ {
		for j := 0; j <= i%5; j++ {
			rs = append(rs, resolvers.Resolver{Version: 4, Organization: fmt.Sprintf("org-%02d", i)})
		}
	}
	st := Compute(rs, Options{})
	if len(st.TopOrganizations) != TopOrganizationsLimit {
		t.Fatalf("len(TopOrganizations) = %d, want %d", len(st.TopOrganizations), TopOrganizationsLimit)
	}
	if st.Totals.Organizations != 30 {
		t.Errorf("Totals.Organizations = %d, want 30", st.Totals.Organizations)
	}
	for i := 1; i < len(st.TopOrganizations); i++ {
		if st.TopOrganizations[i].Count > st.TopOrganizations[i-1].Count {
			t.Fatalf("organization ranking not non-increasing at %d", i)
		}
	}
	if first := st.TopOrganizations[0]; first.Name != "org-04" || first.Count != 5 {
		t.Errorf("first organization = %+v, want org-04 with 5", first)
	}
}

func TestCompute_HighUptimeThreshold(t *testing.T) {
	tests := []struct {
		threshold float64
		want      int
	}{
		{0, 4},
		{99.0, 2},
		{99.5, 1},
		{98.0, 3},
		{100, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.threshold), func(t *testing.T) {
			st := Compute(sample(), Options{HighUptimeThreshold: tt.threshold})
			if st.Features.HighUptime30d != tt.want {
				t.Errorf("HighUptime30d = %d, want %d", st.Features.HighUptime30d, tt.want)
			}
		})
	}
}

func TestCountryRanking_MarshalKeepsOrder(t *testing.T) {
	cr := CountryRanking{
		{Code: "US", Name: "United States", Count: 5},
		{Code: "AU", Name: "Australia", Count: 2},
	}
	out, err := json.Marshal(cr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"US":{"name":"United States","count":5},"AU":{"name":"Australia","count":2}}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}
