package render

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"publicresolvers/resolvers"
)

// CSVHeader is the column order of data/resolvers.csv.
var CSVHeader = []string{
	"ip", "version", "country_code", "country", "continent_code", "continent",
	"organization", "domain", "trusted", "anycast", "dnssec_aware", "dnssec_validating",
	"ad_blocking", "malware_blocking", "adult_blocking",
	"uptime_24h", "uptime_30d", "uptime_90d", "uptime_1y",
}

func (r *Renderer) csvTable(rs []resolvers.Resolver) (Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return Artifact{}, err
	}
	for _, res := range rs {
		if err := w.Write(csvRow(res)); err != nil {
			return Artifact{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: "data/resolvers.csv", Content: buf.Bytes()}, nil
}

func csvRow(r resolvers.Resolver) []string {
	b := strconv.FormatBool
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.IP,
		strconv.Itoa(r.Version),
		r.CountryCode,
		r.Country,
		r.ContinentCode,
		r.Continent,
		r.Organization,
		r.Domain,
		b(r.Trusted),
		b(r.Anycast),
		b(r.DNSSECAware),
		b(r.DNSSECValidating),
		b(r.AdBlocking),
		b(r.MalwareBlocking),
		b(r.AdultBlocking),
		f(r.Uptime24h),
		f(r.Uptime30d),
		f(r.Uptime90d),
		f(r.Uptime1y),
	}
}
