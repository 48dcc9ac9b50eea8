package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/velemoonkon/subscan/pkg/config"
	"github.com/velemoonkon/subscan/pkg/dns"
	"github.com/velemoonkon/subscan/pkg/output"
	"github.com/velemoonkon/subscan/pkg/scanner"
)

// Options represents the CLI flags. Defaults come from the SUBSCAN_*
// environment, so a flag only needs to be set to override it.
type Options struct {
	// Input
	InputFile string

	// Enumeration
	CTEndpoint string

	// Resolution
	ResolverKind       string   // "system", "udp", "tcp", "dot", "doh"
	Resolvers          []string // host[:port] or DoH URL, required unless system
	ResolveTimeout     time.Duration
	ResolveConcurrency int

	// Scanning
	PortsFile        string
	Workers          int
	ProbeConcurrency int
	MaxSockets       int
	ProbeTimeout     time.Duration
	RateLimit        int

	// Output
	OutputFile   string
	OutputFormat string

	// Logging
	Quiet   bool
	Verbose bool
}

// DefaultOptions returns options seeded from the config globals
func DefaultOptions() Options {
	return Options{
		CTEndpoint:         config.CT.Endpoint,
		ResolverKind:       dns.KindSystem,
		ResolveTimeout:     config.DNS.ResolveTimeout,
		ResolveConcurrency: config.DNS.Concurrency,
		Workers:            config.Scanner.Workers,
		ProbeConcurrency:   config.Scanner.ProbeConcurrency,
		MaxSockets:         config.Scanner.MaxSockets,
		ProbeTimeout:       config.Scanner.ProbeTimeout,
		RateLimit:          config.Scanner.RateLimit,
		OutputFile:         "-",
		OutputFormat:       output.FormatText,
	}
}

// AddFlags registers every option on f, using the current values as defaults
func (o *Options) AddFlags(f *pflag.FlagSet) {
	// Input
	f.StringVarP(&o.InputFile, "file", "f", o.InputFile, "Read targets from file (one per line)")

	// Enumeration
	f.StringVar(&o.CTEndpoint, "ct-endpoint", o.CTEndpoint, "Certificate transparency search endpoint")

	// Resolution
	f.StringVar(&o.ResolverKind, "resolver", o.ResolverKind, "Resolver: system, udp, tcp, dot, doh")
	f.StringSliceVar(&o.Resolvers, "resolvers", o.Resolvers, "Resolver servers (host[:port] or DoH URL), comma-separated")
	f.DurationVar(&o.ResolveTimeout, "resolve-timeout", o.ResolveTimeout, "Timeout per DNS lookup")
	f.IntVar(&o.ResolveConcurrency, "resolve-concurrency", o.ResolveConcurrency, "Concurrent DNS lookups while filtering")

	// Scanning
	f.StringVar(&o.PortsFile, "ports-file", o.PortsFile, "YAML port catalog (ports: [..]) replacing the top 100")
	f.IntVarP(&o.Workers, "workers", "w", o.Workers, "Subdomains scanned concurrently")
	f.IntVar(&o.ProbeConcurrency, "probe-concurrency", o.ProbeConcurrency, "Concurrent port probes per subdomain")
	f.IntVar(&o.MaxSockets, "max-sockets", o.MaxSockets, "Upper bound on open sockets (workers x probes), 0=unbounded")
	f.DurationVar(&o.ProbeTimeout, "probe-timeout", o.ProbeTimeout, "Timeout per port probe")
	f.IntVarP(&o.RateLimit, "rate", "r", o.RateLimit, "Max subdomains/second, 0=unlimited")

	// Output
	f.StringVarP(&o.OutputFile, "output", "o", o.OutputFile, "Output file (- for stdout)")
	f.StringVar(&o.OutputFormat, "format", o.OutputFormat, "Output format: text, jsonl, parquet")

	// Logging
	f.BoolVarP(&o.Quiet, "quiet", "q", o.Quiet, "Suppress progress output")
	f.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Verbose logging")
}

// Validate checks option combinations before any network I/O
func (o *Options) Validate() error {
	o.ResolverKind = strings.ToLower(strings.TrimSpace(o.ResolverKind))
	o.OutputFormat = strings.ToLower(strings.TrimSpace(o.OutputFormat))

	switch o.ResolverKind {
	case dns.KindSystem:
	case dns.KindUDP, dns.KindTCP, dns.KindDoT, dns.KindDoH:
		if len(o.Resolvers) == 0 {
			return fmt.Errorf("--resolver %s requires --resolvers", o.ResolverKind)
		}
	default:
		return fmt.Errorf("unknown resolver %q (want system, udp, tcp, dot or doh)", o.ResolverKind)
	}

	switch o.OutputFormat {
	case output.FormatText, output.FormatJSONL:
	case output.FormatParquet:
		if o.OutputFile == "" || o.OutputFile == "-" {
			return fmt.Errorf("parquet cannot write to stdout, use -o file.parquet")
		}
	default:
		return fmt.Errorf("unknown format %q (want text, jsonl or parquet)", o.OutputFormat)
	}

	if o.Workers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", o.Workers)
	}
	if o.ProbeConcurrency <= 0 {
		return fmt.Errorf("--probe-concurrency must be positive, got %d", o.ProbeConcurrency)
	}
	if o.ResolveConcurrency <= 0 {
		return fmt.Errorf("--resolve-concurrency must be positive, got %d", o.ResolveConcurrency)
	}
	if o.MaxSockets < 0 {
		return fmt.Errorf("--max-sockets cannot be negative")
	}
	if o.ProbeTimeout <= 0 || o.ResolveTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// Resolver builds the resolver shared by filtering and scanning
func (o *Options) Resolver() (dns.Resolver, error) {
	opts := dns.DefaultQueryOptions()
	opts.Timeout = o.ResolveTimeout
	return dns.NewResolver(o.ResolverKind, o.Resolvers, opts)
}

// Catalog returns the port catalog, loading --ports-file when set
func (o *Options) Catalog() (scanner.Catalog, error) {
	if o.PortsFile == "" {
		return scanner.DefaultCatalog(), nil
	}
	return scanner.LoadCatalogFile(o.PortsFile)
}

// ScannerConfig resolves the options into a scanner configuration
func (o *Options) ScannerConfig(resolver dns.Resolver) (scanner.Config, error) {
	catalog, err := o.Catalog()
	if err != nil {
		return scanner.Config{}, err
	}

	return scanner.Config{
		Workers:          o.Workers,
		ProbeConcurrency: o.ProbeConcurrency,
		MaxSockets:       o.MaxSockets,
		ProbeTimeout:     o.ProbeTimeout,
		ResolveTimeout:   o.ResolveTimeout,
		RateLimit:        o.RateLimit,
		Catalog:          catalog,
		Resolver:         resolver,
		Quiet:            o.Quiet,
	}, nil
}
