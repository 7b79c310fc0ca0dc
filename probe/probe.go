// Copyright 2024-2026 George (earentir) Pantazis (https://earentir.dev)
// SPDX-License-Identifier: GPL-2.0-only

// Package probe checks generated resolver lists by sending one DNS query to
// every listed server.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"publicresolvers/ipvalidator"
)

const (
	DefaultTimeout     = 2 * time.Second
	DefaultConcurrency = 32
	dnsPort            = "53"
)

// ErrInvalidAddress is recorded for list entries that are not IP addresses.
var ErrInvalidAddress = errors.New("probe: invalid resolver address")

// Options configures a Prober. Zero values take the package defaults; a nil
// Upstream uses a DNSClient.
type Options struct {
	Timeout     time.Duration
	Concurrency int
	Upstream    UpstreamClient
}

// Result is the outcome of querying one resolver.
type Result struct {
	Server  string
	RTT     time.Duration
	Rcode   int
	Answers int
	Err     error
}

// Healthy reports whether the resolver answered with NOERROR.
func (r Result) Healthy() bool {
	return r.Err == nil && r.Rcode == dns.RcodeSuccess
}

// Prober queries resolvers with bounded concurrency.
type Prober struct {
	timeout     time.Duration
	concurrency int
	upstream    UpstreamClient
	now         func() time.Time
}

// New constructs a Prober.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Upstream == nil {
		opts.Upstream = NewDNSClient(opts.Timeout)
	}
	return &Prober{
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		upstream:    opts.Upstream,
		now:         time.Now,
	}
}

// Probe asks every server for name/qtype and returns one Result per server
// in input order. Entries that are not IP addresses are never queried.
func (p *Prober) Probe(ctx context.Context, servers []string, name string, qtype uint16) []Result {
	question := dns.Question{Name: dns.Fqdn(name), Qtype: qtype, Qclass: dns.ClassINET}
	results := make([]Result, len(servers))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, server := range servers {
		results[i].Server = server
		ip := strings.TrimSpace(server)
		if !ipvalidator.IsValidIP(ip) {
			results[i].Err = fmt.Errorf("%w: %q", ErrInvalidAddress, server)
			continue
		}
		g.Go(func() error {
			results[i] = p.query(ctx, question, server, ipvalidator.HostPort(ip, dnsPort))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) query(ctx context.Context, question dns.Question, server, addr string) Result {
	res := Result{Server: server}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	msg, err := p.upstream.Query(ctx, question, addr)
	res.RTT = p.now().Sub(start)
	switch {
	case err != nil:
		res.Err = err
	case msg == nil:
		res.Err = errors.New("probe: empty response")
	default:
		res.Rcode = msg.Rcode
		res.Answers = len(msg.Answer)
	}
	return res
}

// ParseType maps a record type mnemonic such as "A" or "aaaa" to its code.
func ParseType(s string) (uint16, error) {
	t, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("probe: unknown record type %q", s)
	}
	return t, nil
}

// Report tallies probe results.
type Report struct {
	Total   int
	Healthy int
	Failed  int
	Invalid int
}

// Summarize counts healthy, failed and invalid results.
func Summarize(results []Result) Report {
	rep := Report{Total: len(results)}
	for _, r := range results {
		switch {
		case errors.Is(r.Err, ErrInvalidAddress):
			rep.Invalid++
		case r.Healthy():
			rep.Healthy++
		default:
			rep.Failed++
		}
	}
	return rep
}

// RcodeString renders the response code of a successful exchange.
func (r Result) RcodeString() string {
	if r.Err != nil {
		return "ERROR"
	}
	if s, ok := dns.RcodeToString[r.Rcode]; ok {
		return s
	}
	return fmt.Sprintf("RCODE%d", r.Rcode)
}
