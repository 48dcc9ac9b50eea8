// Package pipeline composes subdomain enumeration, resolution filtering and
// port scanning into a single run.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/velemoonkon/subscan/pkg/config"
	"github.com/velemoonkon/subscan/pkg/ct"
	"github.com/velemoonkon/subscan/pkg/dns"
	"github.com/velemoonkon/subscan/pkg/recon"
	"github.com/velemoonkon/subscan/pkg/scanner"
)

// Enumerator produces the candidate subdomains of a target.
// An error aborts the whole run.
type Enumerator interface {
	Enumerate(ctx context.Context, target string) ([]recon.Subdomain, error)
}

// Config wires the pipeline stages. Nil fields fall back to defaults built
// from the environment-backed globals in pkg/config.
type Config struct {
	Enumerator Enumerator
	Resolver   dns.Resolver
	Scanner    *scanner.Scanner

	ResolveConcurrency int           // Max lookups in flight during filtering
	ResolveTimeout     time.Duration // Per candidate
}

// Pipeline runs Enumerator → Resolution Filter → Port Scanner
type Pipeline struct {
	config Config
}

// New creates a pipeline, filling unset stages with defaults
func New(cfg Config) *Pipeline {
	if cfg.Enumerator == nil {
		cfg.Enumerator = ct.NewClient()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = dns.NewSystemResolver()
	}
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = config.DNS.Concurrency
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = config.DNS.ResolveTimeout
	}
	if cfg.Scanner == nil {
		sc := scanner.DefaultConfig()
		sc.Resolver = cfg.Resolver
		cfg.Scanner = scanner.NewScanner(sc)
	}
	return &Pipeline{config: cfg}
}

// Discover enumerates every target and keeps the candidates that resolve.
// All targets are enumerated before any lookup starts, so an enumeration
// error returns nothing at all.
func (p *Pipeline) Discover(ctx context.Context, targets ...string) ([]recon.Subdomain, error) {
	var candidates []recon.Subdomain
	seen := make(map[string]struct{})

	for _, target := range targets {
		subs, err := p.config.Enumerator.Enumerate(ctx, target)
		if err != nil {
			return nil, err
		}

		// Overlapping targets share candidates
		for _, sub := range subs {
			if _, dup := seen[sub.Domain]; dup {
				continue
			}
			seen[sub.Domain] = struct{}{}
			candidates = append(candidates, sub)
		}
	}

	resolved := dns.Filter(ctx, p.config.Resolver, candidates, p.config.ResolveConcurrency, p.config.ResolveTimeout)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("discovery complete",
		"targets", len(targets),
		"candidates", len(candidates),
		"resolved", len(resolved),
	)
	return resolved, nil
}

// Run discovers and scans every target, returning each resolvable
// subdomain with its open ports in no particular order
func (p *Pipeline) Run(ctx context.Context, targets ...string) ([]recon.Subdomain, error) {
	subs, err := p.Discover(ctx, targets...)
	if err != nil {
		return nil, err
	}
	return p.config.Scanner.Scan(ctx, subs)
}

// Stream discovers every target, then hands each scanned subdomain to
// handler as soon as its scan completes. Returns the number of results.
func (p *Pipeline) Stream(ctx context.Context, targets []string, handler func(recon.Subdomain) error) (int, error) {
	subs, err := p.Discover(ctx, targets...)
	if err != nil {
		return 0, err
	}
	return p.ScanStream(ctx, subs, handler)
}

// ScanStream scans already discovered subdomains, handing each result to
// handler as it completes. Callers that must not open an output before
// discovery succeeds use Discover followed by ScanStream.
func (p *Pipeline) ScanStream(ctx context.Context, subs []recon.Subdomain, handler func(recon.Subdomain) error) (int, error) {
	return p.config.Scanner.ScanStream(ctx, slices.Values(subs), handler)
}
