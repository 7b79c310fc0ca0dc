// Copyright 2024-2026 George (earentir) Pantazis (https://earentir.dev)
// SPDX-License-Identifier: GPL-2.0-only
package probe

import (
	"context"
	"errors"
	"time"

	"github.com/miekg/dns"
)

// UpstreamClient sends one DNS question to a resolver address (host:port).
type UpstreamClient interface {
	Query(ctx context.Context, question dns.Question, server string) (*dns.Msg, error)
}

var errNoClient = errors.New("probe: no dns client")

// DNSClient implements UpstreamClient using github.com/miekg/dns.
type DNSClient struct {
	client *dns.Client
}

// NewDNSClient creates an upstream client with the desired dial timeout.
func NewDNSClient(timeout time.Duration) *DNSClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DNSClient{
		client: &dns.Client{
			Timeout: timeout,
		},
	}
}

// Query sends the question, with recursion desired, to server.
func (c *DNSClient) Query(ctx context.Context, question dns.Question, server string) (*dns.Msg, error) {
	if c == nil || c.client == nil {
		return nil, errNoClient
	}
	message := new(dns.Msg)
	message.SetQuestion(question.Name, question.Qtype)
	message.RecursionDesired = true
	resp, _, err := c.client.ExchangeContext(ctx, message, server)
	return resp, err
}
