package dns

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// QueryTCP performs a TCP DNS query
func QueryTCP(ctx context.Context, server string, domain string, qtype uint16, opts QueryOptions) (*dns.Msg, time.Duration, error) {
	msg := newQuery(domain, qtype, opts)

	client := &dns.Client{
		Net:     "tcp",
		Timeout: opts.Timeout,
	}

	resp, rtt, err := client.ExchangeContext(ctx, msg, withPort(server, "53"))
	if err != nil {
		return nil, 0, fmt.Errorf("TCP query failed: %w", err)
	}
	if err := checkResponse(msg, resp); err != nil {
		return nil, 0, err
	}

	return resp, rtt, nil
}
