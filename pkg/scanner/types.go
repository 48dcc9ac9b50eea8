package scanner

import (
	"time"

	"github.com/velemoonkon/subscan/pkg/config"
	"github.com/velemoonkon/subscan/pkg/dns"
)

// Config contains scanner configuration
type Config struct {
	Workers          int           // Subdomains scanned at once (0 or negative = config.Scanner.Workers)
	ProbeConcurrency int           // Max concurrent probes per subdomain, bounded by errgroup
	MaxSockets       int           // Upper bound on Workers × ProbeConcurrency (0 = no bound)
	ProbeTimeout     time.Duration // Per connection attempt
	ResolveTimeout   time.Duration // Scan-time address lookup
	RateLimit        int           // Max subdomains dispatched per second (0 or negative = no limit, uses rate.Inf)

	Catalog  Catalog      // Ports probed on every subdomain (zero value = DefaultCatalog)
	Resolver dns.Resolver // Scan-time address lookup (nil = system resolver)
	Prober   Prober       // Port probe (nil = TCPProber with ProbeTimeout)

	Quiet bool
}

// DefaultConfig returns scanner configuration from the environment-backed globals
func DefaultConfig() Config {
	return Config{
		Workers:          config.Scanner.Workers,
		ProbeConcurrency: config.Scanner.ProbeConcurrency,
		MaxSockets:       config.Scanner.MaxSockets,
		ProbeTimeout:     config.Scanner.ProbeTimeout,
		ResolveTimeout:   config.DNS.ResolveTimeout,
		RateLimit:        config.Scanner.RateLimit,
		Catalog:          DefaultCatalog(),
	}
}
