// Package resolvers holds the canonical public DNS resolver entity and the
// normalizer that builds it from directory API records.
//
// Copyright 2024-2026 George (earentir) Pantazis (https://earentir.dev)
// SPDX-License-Identifier: GPL-2.0-only
package resolvers

import (
	"encoding/json"

	"publicresolvers/ipvalidator"
)

// Resolver is one normalized public DNS server. It is built once per online
// API record and treated as immutable afterwards.
type Resolver struct {
	IP               string
	Version          int
	CountryCode      string
	Country          string
	ContinentCode    string
	Continent        string
	Organization     string
	Domain           string
	Trusted          bool
	Anycast          bool
	DNSSECAware      bool
	DNSSECValidating bool
	AdBlocking       bool
	MalwareBlocking  bool
	AdultBlocking    bool
	Uptime24h        float64
	Uptime30d        float64
	Uptime90d        float64
	Uptime1y         float64
}

// IsIPv4 reports whether the resolver is reachable over IPv4.
func (r Resolver) IsIPv4() bool { return r.Version == 4 }

// IsIPv6 reports whether the resolver is reachable over IPv6.
func (r Resolver) IsIPv6() bool { return r.Version == 6 }

// HighUptime reports whether the 30 day uptime meets threshold.
func (r Resolver) HighUptime(threshold float64) bool {
	return r.Uptime30d >= threshold
}

// RawResolver is one element of the directory API "data" array. Every field
// is optional and decodes leniently; see the scalar types in flex.go.
type RawResolver struct {
	IP               String `json:"dns_server_ip_address"`
	Version          Int    `json:"dns_server_ip_address_version"`
	Online           Bool   `json:"dns_server_is_online"`
	CountryCode      String `json:"country_id"`
	Country          String `json:"country_name"`
	ContinentCode    String `json:"continent_id"`
	Continent        String `json:"continent_name"`
	Organization     String `json:"dns_server_organization"`
	Domain           String `json:"dns_server_domain"`
	Trusted          Bool   `json:"dns_server_is_trusted"`
	Anycast          Bool   `json:"dns_server_is_anycast"`
	DNSSECAware      Bool   `json:"dns_server_dnssec_aware"`
	DNSSECValidating Bool   `json:"dns_server_dnssec_validating"`
	AdBlocking       Bool   `json:"dns_server_is_ad_blocking"`
	MalwareBlocking  Bool   `json:"dns_server_is_malware_blocking"`
	AdultBlocking    Bool   `json:"dns_server_is_porn_blocking"`
	Uptime24h        Float  `json:"dns_server_uptime_24h"`
	Uptime30d        Float  `json:"dns_server_uptime_30d"`
	Uptime90d        Float  `json:"dns_server_uptime_90d"`
	Uptime1y         Float  `json:"dns_server_uptime_1y"`
}

// DecodeRecord decodes one API record. It returns false when the element is
// not a JSON object; individual malformed fields never cause a failure.
func DecodeRecord(data json.RawMessage) (RawResolver, bool) {
	var raw RawResolver
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawResolver{}, false
	}
	return raw, true
}

// IsOnline reports whether the directory marked the record as reachable.
func (raw RawResolver) IsOnline() bool {
	return bool(raw.Online)
}

// Normalize maps a raw record to a Resolver. Missing or malformed fields take
// their zero value; uptimes are always finite. The version is taken from the
// record when it is 4 or 6, otherwise derived from the address, otherwise 4.
func Normalize(raw RawResolver) Resolver {
	return Resolver{
		IP:               string(raw.IP),
		Version:          normalizeVersion(raw.Version, string(raw.IP)),
		CountryCode:      string(raw.CountryCode),
		Country:          string(raw.Country),
		ContinentCode:    string(raw.ContinentCode),
		Continent:        string(raw.Continent),
		Organization:     string(raw.Organization),
		Domain:           string(raw.Domain),
		Trusted:          bool(raw.Trusted),
		Anycast:          bool(raw.Anycast),
		DNSSECAware:      bool(raw.DNSSECAware),
		DNSSECValidating: bool(raw.DNSSECValidating),
		AdBlocking:       bool(raw.AdBlocking),
		MalwareBlocking:  bool(raw.MalwareBlocking),
		AdultBlocking:    bool(raw.AdultBlocking),
		Uptime24h:        float64(raw.Uptime24h),
		Uptime30d:        float64(raw.Uptime30d),
		Uptime90d:        float64(raw.Uptime90d),
		Uptime1y:         float64(raw.Uptime1y),
	}
}

func normalizeVersion(v Int, ip string) int {
	if v.Valid && (v.Value == 4 || v.Value == 6) {
		return v.Value
	}
	if derived := ipvalidator.GetIPVersion(ip); derived != 0 {
		return derived
	}
	return 4
}
