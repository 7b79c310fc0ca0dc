package render

import (
	"sort"
	"strconv"
	"strings"

	"publicresolvers/resolvers"
)

type listSpec struct {
	path  string
	title string
	usage string
	keep  func(resolvers.Resolver) bool
}

func (r *Renderer) globalLists(rs []resolvers.Resolver) []Artifact {
	v4 := resolvers.Resolver.IsIPv4
	v6 := resolvers.Resolver.IsIPv6
	both := func(a, b func(resolvers.Resolver) bool) func(resolvers.Resolver) bool {
		return func(res resolvers.Resolver) bool { return a(res) && b(res) }
	}
	threshold := r.opts.HighUptimeThreshold

	specs := []listSpec{
		{"all.txt", "Public DNS Servers - All IPv4", "massdns -r all.txt -t A domains.txt", v4},
		{"all-ipv6.txt", "Public DNS Servers - All IPv6", "", v6},
		{"trusted.txt", "Public DNS Servers - Trusted Providers (IPv4)", "massdns -r trusted.txt -t A domains.txt",
			both(v4, func(res resolvers.Resolver) bool { return res.Trusted })},
		{"trusted-ipv6.txt", "Public DNS Servers - Trusted Providers (IPv6)", "",
			both(v6, func(res resolvers.Resolver) bool { return res.Trusted })},
		{"dnssec.txt", "Public DNS Servers - DNSSEC Validating (IPv4)", "",
			both(v4, func(res resolvers.Resolver) bool { return res.DNSSECValidating })},
		{"dnssec-ipv6.txt", "Public DNS Servers - DNSSEC Validating (IPv6)", "",
			both(v6, func(res resolvers.Resolver) bool { return res.DNSSECValidating })},
		{"ad-blocking.txt", "Public DNS Servers - Ad Blocking (IPv4)", "",
			both(v4, func(res resolvers.Resolver) bool { return res.AdBlocking })},
		{"malware-blocking.txt", "Public DNS Servers - Malware Blocking (IPv4)", "",
			both(v4, func(res resolvers.Resolver) bool { return res.MalwareBlocking })},
		{"family-safe.txt", "Public DNS Servers - Family Safe / Adult Blocking (IPv4)", "",
			both(v4, func(res resolvers.Resolver) bool { return res.AdultBlocking })},
		{"high-uptime.txt", "Public DNS Servers - High Uptime >=" + formatPercent(threshold) + "% (IPv4)", "",
			both(v4, func(res resolvers.Resolver) bool { return res.HighUptime(threshold) })},
	}

	out := make([]Artifact, 0, len(specs))
	for _, s := range specs {
		out = append(out, r.textList("resolvers/global/"+s.path, s.title, s.usage, filter(rs, s.keep)))
	}
	return out
}

func (r *Renderer) countryLists(rs []resolvers.Resolver) []Artifact {
	var out []Artifact
	for _, g := range r.partition(rs, byCountry, resolvers.Resolver.IsIPv4) {
		title := "Public DNS Servers - " + g.members[0].Country + " (" + g.code + ")"
		usage := "massdns -r " + g.code + ".txt -t A domains.txt"
		out = append(out, r.textList("resolvers/by-country/"+g.code+".txt", title, usage, g.members))
	}
	return out
}

func (r *Renderer) countryIPv6Lists(rs []resolvers.Resolver) []Artifact {
	var out []Artifact
	for _, g := range r.partition(rs, byCountry, resolvers.Resolver.IsIPv6) {
		title := "Public DNS Servers - " + g.members[0].Country + " (" + g.code + ") - IPv6"
		out = append(out, r.textList("resolvers/by-country-ipv6/"+g.code+".txt", title, "", g.members))
	}
	return out
}

func (r *Renderer) continentLists(rs []resolvers.Resolver) []Artifact {
	var out []Artifact
	for _, g := range r.partition(rs, byContinent, nil) {
		title := "Public DNS Servers - " + g.members[0].Continent + " (" + g.code + ")"
		usage := "massdns -r " + g.code + ".txt -t A domains.txt"
		out = append(out, r.textList("resolvers/by-continent/"+g.code+".txt", title, usage, g.members))
	}
	return out
}

// textList renders the comment header followed by the unique IPs of rs in
// lexicographic order, one per line.
func (r *Renderer) textList(path, title, usage string, rs []resolvers.Resolver) Artifact {
	ips := uniqueIPs(rs)

	var b strings.Builder
	b.WriteString("# " + title + "\n")
	b.WriteString("# Source: " + r.opts.SourceURL + "\n")
	b.WriteString("# Updated: " + r.opts.Timestamp + "\n")
	b.WriteString("# Total: " + strconv.Itoa(len(ips)) + " servers\n")
	b.WriteString("#\n")
	if usage != "" {
		b.WriteString("# Usage: " + usage + "\n")
		b.WriteString("#\n")
	}
	b.WriteString(strings.Join(ips, "\n"))
	b.WriteString("\n")
	return Artifact{Path: path, Content: []byte(b.String())}
}

func uniqueIPs(rs []resolvers.Resolver) []string {
	seen := make(map[string]struct{}, len(rs))
	ips := make([]string, 0, len(rs))
	for _, r := range rs {
		if _, ok := seen[r.IP]; ok {
			continue
		}
		seen[r.IP] = struct{}{}
		ips = append(ips, r.IP)
	}
	sort.Strings(ips)
	return ips
}

// formatPercent prints v with at least one decimal, so 99 reads "99.0".
func formatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
