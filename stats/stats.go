// Package stats reduces a resolver collection to an aggregate snapshot.
package stats

import (
	"bytes"
	"encoding/json"
	"sort"

	"publicresolvers/resolvers"
)

const (
	// DefaultHighUptimeThreshold is the 30 day uptime percentage a resolver must reach to count as high uptime.
	DefaultHighUptimeThreshold = 99.0
	// TopOrganizationsLimit caps the organization ranking.
	TopOrganizationsLimit = 20
)

// Totals holds collection-wide counts.
type Totals struct {
	Servers       int `json:"servers"`
	IPv4          int `json:"servers_ipv4"`
	IPv6          int `json:"servers_ipv6"`
	Countries     int `json:"countries"`
	Continents    int `json:"continents"`
	Organizations int `json:"organizations"`
}

// Features counts resolvers per capability flag.
type Features struct {
	Online           int `json:"online"`
	Trusted          int `json:"trusted"`
	DNSSECAware      int `json:"dnssec_aware"`
	DNSSECValidating int `json:"dnssec_validating"`
	AdBlocking       int `json:"ad_blocking"`
	MalwareBlocking  int `json:"malware_blocking"`
	AdultBlocking    int `json:"adult_blocking"`
	Anycast          int `json:"anycast"`
	HighUptime30d    int `json:"high_uptime_30d"`
}

// NamedCount is a display name with a tally.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CountryCount is one entry of the country ranking.
type CountryCount struct {
	Code  string
	Name  string
	Count int
}

// CountryRanking lists countries by descending count. It marshals to a JSON
// object keyed by country code that keeps the ranking order.
type CountryRanking []CountryCount

func (cr CountryRanking) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cr {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Code)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(NamedCount{Name: c.Name, Count: c.Count})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Statistics is an immutable snapshot computed from one full resolver collection.
type Statistics struct {
	Timestamp        string
	Totals           Totals
	Features         Features
	ByContinent      map[string]NamedCount
	ByCountry        CountryRanking
	TopOrganizations []NamedCount
}

// Options parameterise Compute. HighUptimeThreshold is used as given, so a
// zero threshold counts every resolver; callers that want the usual cut-off
// pass DefaultHighUptimeThreshold.
type Options struct {
	Timestamp           string
	HighUptimeThreshold float64
}

// tally accumulates counts per key and remembers first-seen order so ties
// keep input order after a stable sort.
type tally struct {
	index map[string]int
	keys  []string
	names []string
	count []int
}

func newTally() *tally {
	return &tally{index: make(map[string]int)}
}

func (t *tally) add(key, name string) int {
	i, ok := t.index[key]
	if !ok {
		i = len(t.keys)
		t.index[key] = i
		t.keys = append(t.keys, key)
		t.names = append(t.names, name)
		t.count = append(t.count, 0)
	}
	t.count[i]++
	return i
}

// ranked returns indexes ordered by descending count, ties in first-seen order.
func (t *tally) ranked() []int {
	order := make([]int, len(t.keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.count[order[a]] > t.count[order[b]]
	})
	return order
}

// Compute reduces rs to Statistics in a single pass. Resolvers with an empty
// country, continent or organization are left out of that dimension but still
// counted in the totals. The country name is the first one seen for a code;
// the continent name is the last one seen.
func Compute(rs []resolvers.Resolver, opts Options) Statistics {
	threshold := opts.HighUptimeThreshold
	countries := newTally()
	continents := newTally()
	orgs := newTally()

	st := Statistics{Timestamp: opts.Timestamp}
	for _, r := range rs {
		switch {
		case r.IsIPv4():
			st.Totals.IPv4++
		case r.IsIPv6():
			st.Totals.IPv6++
		}
		if r.CountryCode != "" {
			countries.add(r.CountryCode, r.Country)
		}
		if r.ContinentCode != "" {
			i := continents.add(r.ContinentCode, r.Continent)
			continents.names[i] = r.Continent
		}
		if r.Organization != "" {
			orgs.add(r.Organization, r.Organization)
		}

		f := &st.Features
		if r.Trusted {
			f.Trusted++
		}
		if r.DNSSECAware {
			f.DNSSECAware++
		}
		if r.DNSSECValidating {
			f.DNSSECValidating++
		}
		if r.AdBlocking {
			f.AdBlocking++
		}
		if r.MalwareBlocking {
			f.MalwareBlocking++
		}
		if r.AdultBlocking {
			f.AdultBlocking++
		}
		if r.Anycast {
			f.Anycast++
		}
		if r.HighUptime(threshold) {
			f.HighUptime30d++
		}
	}

	st.Totals.Servers = len(rs)
	st.Totals.Countries = len(countries.keys)
	st.Totals.Continents = len(continents.keys)
	st.Totals.Organizations = len(orgs.keys)
	st.Features.Online = len(rs)

	st.ByContinent = make(map[string]NamedCount, len(continents.keys))
	for i, code := range continents.keys {
		st.ByContinent[code] = NamedCount{Name: continents.names[i], Count: continents.count[i]}
	}

	st.ByCountry = make(CountryRanking, 0, len(countries.keys))
	for _, i := range countries.ranked() {
		st.ByCountry = append(st.ByCountry, CountryCount{
			Code:  countries.keys[i],
			Name:  countries.names[i],
			Count: countries.count[i],
		})
	}

	st.TopOrganizations = make([]NamedCount, 0, TopOrganizationsLimit)
	for _, i := range orgs.ranked() {
		if len(st.TopOrganizations) == TopOrganizationsLimit {
			break
		}
		st.TopOrganizations = append(st.TopOrganizations, NamedCount{Name: orgs.keys[i], Count: orgs.count[i]})
	}
	return st
}

// TopCountries returns at most n entries from the head of the country ranking.
func (s Statistics) TopCountries(n int) CountryRanking {
	if n < 0 {
		n = 0
	}
	if n > len(s.ByCountry) {
		n = len(s.ByCountry)
	}
	return s.ByCountry[:n]
}
