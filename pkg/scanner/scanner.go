package scanner

import (
	"context"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/velemoonkon/subscan/pkg/config"
	"github.com/velemoonkon/subscan/pkg/dns"
	"github.com/velemoonkon/subscan/pkg/recon"
	"golang.org/x/time/rate"
)

// Scanner runs the per-subdomain port scan across a bounded worker pool
type Scanner struct {
	config   Config
	limiter  *rate.Limiter
	resolver dns.Resolver
	prober   Prober
}

// NewScanner creates a new scanner with configuration
func NewScanner(cfg Config) *Scanner {
	// Workers=0 means "auto": take the configured default, else max(4, 4*GOMAXPROCS)
	if cfg.Workers <= 0 {
		cfg.Workers = config.Scanner.Workers
	}
	if cfg.Workers <= 0 {
		cfg.Workers = max(4, runtime.GOMAXPROCS(0)*4)
	}

	if cfg.Catalog.Len() == 0 {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = cfg.Catalog.Len()
	}

	// Workers × ProbeConcurrency is the number of sockets that can be open at once
	if cfg.MaxSockets > 0 {
		cfg.Workers = min(cfg.Workers, cfg.MaxSockets)
		if cfg.Workers*cfg.ProbeConcurrency > cfg.MaxSockets {
			cfg.ProbeConcurrency = max(1, cfg.MaxSockets/cfg.Workers)
		}
	}

	// Create rate limiter - treat RateLimit <= 0 as no limit
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0) // No rate limit
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = dns.NewSystemResolver()
	}

	prober := cfg.Prober
	if prober == nil {
		prober = NewTCPProber(cfg.ProbeTimeout)
	}

	return &Scanner{
		config:   cfg,
		limiter:  limiter,
		resolver: resolver,
		prober:   prober,
	}
}

// Workers returns the effective outer pool size after clamping
func (s *Scanner) Workers() int {
	return s.config.Workers
}

// ProbeConcurrency returns the effective per-subdomain fan-out after clamping
func (s *Scanner) ProbeConcurrency() int {
	return s.config.ProbeConcurrency
}

// Scan scans a list of subdomains and returns one result per subdomain,
// in completion order
func (s *Scanner) Scan(ctx context.Context, subs []recon.Subdomain) ([]recon.Subdomain, error) {
	return s.ScanIter(ctx, slices.Values(subs), len(subs))
}

// ScanIter scans subdomains from an iterator and returns the results.
// The sizeHint parameter is used for preallocating the result slice. Use 0 if unknown.
func (s *Scanner) ScanIter(ctx context.Context, subSeq iter.Seq[recon.Subdomain], sizeHint int) ([]recon.Subdomain, error) {
	results := make([]recon.Subdomain, 0, max(0, sizeHint))

	_, err := s.ScanStream(ctx, subSeq, func(result recon.Subdomain) error {
		results = append(results, result)
		return nil
	})
	return results, err
}

// ScanStream scans subdomains from an iterator and calls resultHandler for each result
// The resultHandler is called synchronously from a single goroutine, so it should be fast or buffer internally
// Returns total count of results processed
func (s *Scanner) ScanStream(ctx context.Context, subSeq iter.Seq[recon.Subdomain], resultHandler func(recon.Subdomain) error) (int, error) {
	cfg := config.Scanner
	subChan := make(chan recon.Subdomain, max(0, cfg.SubdomainChannelBuffer))
	resultChan := make(chan recon.Subdomain, max(0, cfg.ResultChannelBuffer))
	var wg sync.WaitGroup

	// Start workers
	for range s.config.Workers {
		wg.Go(func() {
			s.worker(ctx, subChan, resultChan)
		})
	}

	// Start result collector that calls handler instead of accumulating
	var collectorWg sync.WaitGroup
	var handlerErr error
	resultCount := 0
	collectorWg.Go(func() {
		for result := range resultChan {
			resultCount++
			if !s.config.Quiet {
				s.logProgress(result)
			}

			// Keep draining so workers never block on a failed handler
			if err := resultHandler(result); err != nil && handlerErr == nil {
				handlerErr = err
			}
		}
	})

	// Feed subdomains to workers from iterator with cooperative cancellation
	go func() {
		defer close(subChan)
		for sub := range subSeq {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := s.limiter.Wait(ctx); err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case subChan <- sub:
			}
		}
	}()

	// Wait for workers to finish
	wg.Wait()
	close(resultChan)

	// Wait for collector to finish
	collectorWg.Wait()

	if handlerErr != nil {
		return resultCount, handlerErr
	}
	return resultCount, ctx.Err()
}

// worker scans individual subdomains
// Uses select to immediately stop on cancellation, discarding any buffered subdomains
func (s *Scanner) worker(ctx context.Context, subChan <-chan recon.Subdomain, resultChan chan<- recon.Subdomain) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub, ok := <-subChan:
			if !ok {
				return
			}

			result := s.ScanSubdomain(ctx, sub)

			select {
			case <-ctx.Done():
				return
			case resultChan <- result:
			}
		}
	}
}

// ScanSubdomain resolves sub and probes every catalog port on its first
// address. A name that yields no address gets an empty port collection.
// The input is never modified; a new value is returned.
func (s *Scanner) ScanSubdomain(ctx context.Context, sub recon.Subdomain) recon.Subdomain {
	host, ok := s.address(ctx, sub.Domain)
	if !ok {
		return sub.WithPorts(nil)
	}

	open := ScanPorts(ctx, s.prober, host, s.config.Catalog, s.config.ProbeConcurrency)
	return sub.WithPorts(open)
}

// address returns the first address of domain
func (s *Scanner) address(ctx context.Context, domain string) (string, bool) {
	if s.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ResolveTimeout)
		defer cancel()
	}

	ips, err := s.resolver.LookupIP(ctx, domain)
	if err != nil || len(ips) == 0 {
		slog.Debug("no address for subdomain", "domain", domain, "resolver", s.resolver.Name(), "error", err)
		return "", false
	}
	return ips[0].String(), true
}

// logProgress logs scan progress with structured logging using slog.Group for nested attributes
func (s *Scanner) logProgress(result recon.Subdomain) {
	ports := result.OpenPortNumbers()
	slog.Info("scan result",
		slog.String("domain", result.Domain),
		slog.Group("ports",
			slog.Int("open", len(ports)),
			slog.Any("list", ports),
		),
	)
}
