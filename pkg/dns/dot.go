package dns

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// QueryDoT performs a DNS over TLS query.
// The certificate is verified against the server host name.
func QueryDoT(ctx context.Context, server string, domain string, qtype uint16, opts QueryOptions) (*dns.Msg, time.Duration, error) {
	msg := newQuery(domain, qtype, opts)

	serverAddr := withPort(server, "853")
	host, _, err := net.SplitHostPort(serverAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid DoT server %q: %w", server, err)
	}

	client := &dns.Client{
		Net:     "tcp-tls",
		Timeout: opts.Timeout,
		TLSConfig: &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		},
	}

	resp, rtt, err := client.ExchangeContext(ctx, msg, serverAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("DoT query failed: %w", err)
	}
	if err := checkResponse(msg, resp); err != nil {
		return nil, 0, err
	}

	return resp, rtt, nil
}
