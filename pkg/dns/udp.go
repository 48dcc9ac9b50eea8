package dns

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/velemoonkon/subscan/pkg/config"
)

// QueryUDP performs a UDP DNS query
func QueryUDP(ctx context.Context, server string, domain string, qtype uint16, opts QueryOptions) (*dns.Msg, time.Duration, error) {
	msg := newQuery(domain, qtype, opts)

	client := &dns.Client{
		Net:     "udp",
		Timeout: opts.Timeout,
	}

	resp, rtt, err := client.ExchangeContext(ctx, msg, withPort(server, "53"))
	if err != nil {
		return nil, 0, fmt.Errorf("UDP query failed: %w", err)
	}
	if err := checkResponse(msg, resp); err != nil {
		return nil, 0, err
	}

	// Truncated answers are retried over TCP
	if resp.Truncated {
		return QueryTCP(ctx, server, domain, qtype, opts)
	}

	return resp, rtt, nil
}

// withPort appends the default port when server has none
func withPort(server, port string) string {
	if _, _, err := net.SplitHostPort(server); err != nil {
		return net.JoinHostPort(server, port)
	}
	return server
}

// checkResponse rejects empty replies and, when enabled, mismatched IDs
func checkResponse(msg, resp *dns.Msg) error {
	if resp == nil {
		return fmt.Errorf("empty response")
	}

	// Optional: Validate response ID (disabled by default for speed)
	if config.DNS.ValidateResponseID && resp.Id != msg.Id {
		return fmt.Errorf("DNS response ID mismatch: expected %d, got %d (possible spoofing)", msg.Id, resp.Id)
	}
	return nil
}
