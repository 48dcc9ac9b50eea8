package dns

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/velemoonkon/subscan/pkg/config"
)

var (
	// Shared HTTP client for DoH requests to enable connection reuse
	sharedDoHClient     *http.Client
	sharedDoHClientOnce sync.Once
)

// getSharedDoHClient returns a shared HTTP client optimized for DoH requests
// Configuration is loaded from environment variables with SUBSCAN_ prefix
func getSharedDoHClient() *http.Client {
	sharedDoHClientOnce.Do(func() {
		cfg := config.HTTP

		transport := &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CurvePreferences: []tls.CurveID{
					tls.X25519MLKEM768, // Post-quantum hybrid
					tls.X25519,         // Classical fallback
				},
			},
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialTimeout,
				KeepAlive: cfg.KeepAlive,
			}).DialContext,
		}

		sharedDoHClient = &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		}
	})
	return sharedDoHClient
}

// DefaultDoHPath is the RFC 8484 endpoint path
const DefaultDoHPath = "/dns-query"

// dohURL turns a server entry into a request URL. A bare host gets
// https:// and the RFC 8484 path; full URLs are used unchanged.
func dohURL(server string) string {
	if strings.HasPrefix(server, "https://") || strings.HasPrefix(server, "http://") {
		return server
	}
	return "https://" + server + DefaultDoHPath
}

// QueryDoH performs a DNS over HTTPS query (RFC 8484 POST)
func QueryDoH(ctx context.Context, server string, domain string, qtype uint16, opts QueryOptions) (*dns.Msg, time.Duration, error) {
	msg := newQuery(domain, qtype, opts)

	// Pack DNS message to wire format
	wireMsg, err := msg.Pack()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pack DNS message: %w", err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dohURL(server), bytes.NewReader(wireMsg))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")

	start := time.Now()
	resp, err := getSharedDoHClient().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("DoH request failed: %w", err)
	}
	defer resp.Body.Close()

	rtt := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("DoH returned status %d", resp.StatusCode)
	}

	// Check content type (case-insensitive, handles charset parameters)
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "application/dns-message") {
		return nil, 0, fmt.Errorf("unexpected content type: %s", contentType)
	}

	// Read one byte past the limit so truncation is detectable
	maxSize := config.HTTP.MaxDoHResponseSize
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read DoH response: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, 0, fmt.Errorf("DoH response exceeds maximum size of %d bytes (SUBSCAN_MAX_DOH_RESPONSE_SIZE)", maxSize)
	}

	dnsResp := new(dns.Msg)
	if err := dnsResp.Unpack(body); err != nil {
		return nil, 0, fmt.Errorf("failed to unpack DNS response: %w", err)
	}

	// RFC 8484 recommends ID 0 on the wire; only compare when asked
	if err := checkResponse(msg, dnsResp); err != nil {
		return nil, 0, err
	}

	return dnsResp, rtt, nil
}
