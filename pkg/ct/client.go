// Package ct discovers candidate subdomains from a certificate transparency
// aggregator (crt.sh compatible JSON search API).
package ct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/velemoonkon/subscan/pkg/config"
	"github.com/velemoonkon/subscan/pkg/recon"
)

// Record is one certificate entry returned by the aggregator.
// NameValue may hold several names separated by newlines.
type Record struct {
	NameValue string `json:"name_value"`
}

// Client queries the CT aggregator. It keeps no state between calls.
type Client struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
	maxBody    int64
}

// Option customizes a Client
type Option func(*Client)

// WithEndpoint overrides the aggregator base URL
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient replaces the HTTP client used for queries
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a CT client from config.HTTP and config.CT,
// applying opts on top
func NewClient(opts ...Option) *Client {
	cfg := config.HTTP

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
	}

	maxRedirects := cfg.MaxRedirects
	c := &Client{
		endpoint: config.CT.Endpoint,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxResponseSize,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchURL builds the aggregator query for every name under target
func (c *Client) SearchURL(target string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid CT endpoint %q: %w", c.endpoint, err)
	}
	q := u.Query()
	q.Set("q", "%."+target)
	q.Set("output", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch performs the single aggregator request for target and decodes
// the certificate records. Any failure is returned as *AggregatorError.
func (c *Client) Fetch(ctx context.Context, target string) ([]Record, error) {
	searchURL, err := c.SearchURL(target)
	if err != nil {
		return nil, &AggregatorError{Target: target, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &AggregatorError{Target: target, URL: searchURL, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	slog.Debug("querying CT aggregator", "target", target, "url", searchURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AggregatorError{Target: target, URL: searchURL, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &AggregatorError{
			Target:     target,
			URL:        searchURL,
			StatusCode: resp.StatusCode,
			Err:        ErrUnexpectedStatus,
		}
	}

	var records []Record
	body := io.Reader(resp.Body)
	if c.maxBody > 0 {
		body = io.LimitReader(resp.Body, c.maxBody)
	}
	if err := json.NewDecoder(body).Decode(&records); err != nil {
		return nil, &AggregatorError{Target: target, URL: searchURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}

	slog.Debug("parsed CT records", "target", target, "count", len(records))
	return records, nil
}

// Enumerate returns the deduplicated candidate subdomains for target,
// each with an empty port collection. The target itself is always included.
func (c *Client) Enumerate(ctx context.Context, target string) ([]recon.Subdomain, error) {
	records, err := c.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	names := Candidates(target, records)
	subs := make([]recon.Subdomain, len(names))
	for i, name := range names {
		subs[i] = recon.NewSubdomain(name)
	}

	slog.Info("enumerated candidates", "target", target, "records", len(records), "candidates", len(subs))
	return subs, nil
}

// Candidates splits, normalizes and deduplicates the names in records.
// Names equal to target or containing a wildcard are dropped, then target
// is added unconditionally. The returned order is unspecified.
func Candidates(target string, records []Record) []string {
	target = normalizeName(target)
	seen := make(map[string]struct{})

	for _, record := range records {
		for _, piece := range strings.Split(record.NameValue, "\n") {
			name := normalizeName(piece)
			if name == "" || name == target || strings.Contains(name, "*") {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	seen[target] = struct{}{}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

// normalizeName trims whitespace, lowercases and drops a trailing root dot
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, ".")
}

// IsAggregatorError reports whether err came from querying the aggregator
func IsAggregatorError(err error) bool {
	var aggErr *AggregatorError
	return errors.As(err, &aggErr)
}
