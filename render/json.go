package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"publicresolvers/resolvers"
	"publicresolvers/stats"
)

type dnssecJSON struct {
	Aware      bool `json:"aware"`
	Validating bool `json:"validating"`
}

type blockingJSON struct {
	Ads     bool `json:"ads"`
	Malware bool `json:"malware"`
	Adult   bool `json:"adult"`
}

type uptimeJSON struct {
	Day     float64 `json:"24h"`
	Month   float64 `json:"30d"`
	Quarter float64 `json:"90d"`
	Year    float64 `json:"1y"`
}

// resolverJSON is the published shape of one resolver.
type resolverJSON struct {
	IP            string       `json:"ip"`
	Version       int          `json:"version"`
	CountryCode   string       `json:"country_code"`
	Country       string       `json:"country"`
	ContinentCode string       `json:"continent_code"`
	Continent     string       `json:"continent"`
	Organization  string       `json:"organization"`
	Domain        string       `json:"domain"`
	Trusted       bool         `json:"trusted"`
	Anycast       bool         `json:"anycast"`
	DNSSEC        dnssecJSON   `json:"dnssec"`
	Blocking      blockingJSON `json:"blocking"`
	Uptime        uptimeJSON   `json:"uptime"`
}

func toResolverJSON(r resolvers.Resolver) resolverJSON {
	return resolverJSON{
		IP:            r.IP,
		Version:       r.Version,
		CountryCode:   r.CountryCode,
		Country:       r.Country,
		ContinentCode: r.ContinentCode,
		Continent:     r.Continent,
		Organization:  r.Organization,
		Domain:        r.Domain,
		Trusted:       r.Trusted,
		Anycast:       r.Anycast,
		DNSSEC:        dnssecJSON{Aware: r.DNSSECAware, Validating: r.DNSSECValidating},
		Blocking:      blockingJSON{Ads: r.AdBlocking, Malware: r.MalwareBlocking, Adult: r.AdultBlocking},
		Uptime:        uptimeJSON{Day: r.Uptime24h, Month: r.Uptime30d, Quarter: r.Uptime90d, Year: r.Uptime1y},
	}
}

func toResolverJSONList(rs []resolvers.Resolver) []resolverJSON {
	out := make([]resolverJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResolverJSON(r))
	}
	return out
}

type collectionMetadata struct {
	Source          string `json:"source"`
	GeneratedAt     string `json:"generated_at"`
	TotalServers    int    `json:"total_servers"`
	TotalCountries  int    `json:"total_countries"`
	TotalContinents int    `json:"total_continents"`
}

type versionSummary struct {
	IPv4 int `json:"ipv4"`
	IPv6 int `json:"ipv6"`
}

type featureSummary struct {
	Trusted          int `json:"trusted"`
	DNSSECValidating int `json:"dnssec_validating"`
	AdBlocking       int `json:"ad_blocking"`
	MalwareBlocking  int `json:"malware_blocking"`
	AdultBlocking    int `json:"adult_blocking"`
}

type countryEntry struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type collectionStatistics struct {
	ByIPVersion  versionSummary `json:"by_ip_version"`
	ByFeature    featureSummary `json:"by_feature"`
	TopCountries []countryEntry `json:"top_countries"`
}

type collectionDocument struct {
	Metadata   collectionMetadata   `json:"metadata"`
	Statistics collectionStatistics `json:"statistics"`
	Resolvers  []resolverJSON       `json:"resolvers"`
}

type minimalResolver struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Trusted bool   `json:"trusted"`
}

type minimalDocument struct {
	GeneratedAt string            `json:"generated_at"`
	Resolvers   []minimalResolver `json:"resolvers"`
}

type countryMetadata struct {
	CountryCode   string `json:"country_code"`
	CountryName   string `json:"country_name"`
	ContinentCode string `json:"continent_code"`
	ContinentName string `json:"continent_name"`
	GeneratedAt   string `json:"generated_at"`
	TotalServers  int    `json:"total_servers"`
}

type countryDocument struct {
	Metadata  countryMetadata `json:"metadata"`
	Resolvers []resolverJSON  `json:"resolvers"`
}

type continentMetadata struct {
	ContinentCode string `json:"continent_code"`
	ContinentName string `json:"continent_name"`
	GeneratedAt   string `json:"generated_at"`
	TotalServers  int    `json:"total_servers"`
}

type continentDocument struct {
	Metadata  continentMetadata `json:"metadata"`
	Resolvers []resolverJSON    `json:"resolvers"`
}

// statsDocument is data/stats.json. by_continent is a map so its keys come
// out sorted; by_country keeps ranking order.
type statsDocument struct {
	LastUpdated      string                      `json:"last_updated"`
	UpdateFrequency  string                      `json:"update_frequency"`
	DataSource       string                      `json:"data_source"`
	Totals           stats.Totals                `json:"totals"`
	ByFeature        stats.Features              `json:"by_feature"`
	ByContinent      map[string]stats.NamedCount `json:"by_continent"`
	ByCountry        stats.CountryRanking        `json:"by_country"`
	TopOrganizations []stats.NamedCount          `json:"top_organizations"`
}

func (r *Renderer) jsonDocuments(rs []resolvers.Resolver, st stats.Statistics) ([]Artifact, error) {
	var out []Artifact
	add := func(path string, v any) error {
		content, err := encodeJSON(v)
		if err != nil {
			return fmt.Errorf("render: %s: %w", path, err)
		}
		out = append(out, Artifact{Path: path, Content: content})
		return nil
	}

	top := st.TopCountries(topCountriesInSummary)
	topCountries := make([]countryEntry, 0, len(top))
	for _, c := range top {
		topCountries = append(topCountries, countryEntry(c))
	}
	collection := collectionDocument{
		Metadata: collectionMetadata{
			Source:          r.opts.SourceURL,
			GeneratedAt:     r.opts.Timestamp,
			TotalServers:    len(rs),
			TotalCountries:  st.Totals.Countries,
			TotalContinents: st.Totals.Continents,
		},
		Statistics: collectionStatistics{
			ByIPVersion: versionSummary{IPv4: st.Totals.IPv4, IPv6: st.Totals.IPv6},
			ByFeature: featureSummary{
				Trusted:          st.Features.Trusted,
				DNSSECValidating: st.Features.DNSSECValidating,
				AdBlocking:       st.Features.AdBlocking,
				MalwareBlocking:  st.Features.MalwareBlocking,
				AdultBlocking:    st.Features.AdultBlocking,
			},
			TopCountries: topCountries,
		},
		Resolvers: toResolverJSONList(rs),
	}
	if err := add("data/resolvers.json", collection); err != nil {
		return nil, err
	}

	minimal := minimalDocument{GeneratedAt: r.opts.Timestamp, Resolvers: make([]minimalResolver, 0, len(rs))}
	for _, res := range rs {
		minimal.Resolvers = append(minimal.Resolvers, minimalResolver{IP: res.IP, Country: res.CountryCode, Trusted: res.Trusted})
	}
	if err := add("data/resolvers-minimal.json", minimal); err != nil {
		return nil, err
	}

	for _, g := range r.partition(rs, byCountry, nil) {
		first := g.members[0]
		doc := countryDocument{
			Metadata: countryMetadata{
				CountryCode:   g.code,
				CountryName:   first.Country,
				ContinentCode: first.ContinentCode,
				ContinentName: first.Continent,
				GeneratedAt:   r.opts.Timestamp,
				TotalServers:  len(g.members),
			},
			Resolvers: toResolverJSONList(g.members),
		}
		if err := add("data/by-country/"+g.code+".json", doc); err != nil {
			return nil, err
		}
	}

	for _, g := range r.partition(rs, byContinent, nil) {
		doc := continentDocument{
			Metadata: continentMetadata{
				ContinentCode: g.code,
				ContinentName: g.members[0].Continent,
				GeneratedAt:   r.opts.Timestamp,
				TotalServers:  len(g.members),
			},
			Resolvers: toResolverJSONList(g.members),
		}
		if err := add("data/by-continent/"+g.code+".json", doc); err != nil {
			return nil, err
		}
	}

	summary := statsDocument{
		LastUpdated:      r.opts.Timestamp,
		UpdateFrequency:  r.opts.UpdateFrequency,
		DataSource:       r.opts.SourceURL,
		Totals:           st.Totals,
		ByFeature:        st.Features,
		ByContinent:      st.ByContinent,
		ByCountry:        st.ByCountry,
		TopOrganizations: st.TopOrganizations,
	}
	if err := add("data/stats.json", summary); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeJSON writes v with two-space indentation, without HTML escaping and
// with a trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
