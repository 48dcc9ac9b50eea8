package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/velemoonkon/subscan/pkg/config"
	"github.com/velemoonkon/subscan/pkg/ct"
	"github.com/velemoonkon/subscan/pkg/dns"
	"github.com/velemoonkon/subscan/pkg/input"
	"github.com/velemoonkon/subscan/pkg/output"
	"github.com/velemoonkon/subscan/pkg/pipeline"
	"github.com/velemoonkon/subscan/pkg/scanner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	opts := DefaultOptions()

	cmd := &cobra.Command{
		Use:   "subscan [flags] <domain>...",
		Short: "Subdomain discovery and port scanner",
		Long: `Subscan - certificate transparency subdomain discovery with TCP port scanning

For every target domain:
  • Collects names from certificate transparency logs (crt.sh)
  • Keeps the names that currently resolve
  • Probes each one for open TCP ports (top 100 by default)

Output formats:
  • text (default) - domain, then one open port per line
  • JSONL - streaming, pipe to jq
  • Parquet - columnar, query with DuckDB`,

		Example: `  # Scan one domain
  subscan example.com

  # Several targets, JSONL to a file
  subscan example.com,example.org --format jsonl -o results.jsonl

  # Resolve through a specific DoH server
  subscan example.com --resolver doh --resolvers cloudflare-dns.com

  # Custom port list and gentler scanning
  subscan example.com --ports-file ports.yaml -w 4 --probe-concurrency 20

  # Parquet output for analytics
  subscan -f targets.txt --format parquet -o scan.parquet
  # Then query: duckdb -c "SELECT domain FROM 'scan.parquet' WHERE open_port_count > 0"`,

		Args: func(cmd *cobra.Command, args []string) error {
			if opts.InputFile == "" && len(args) == 0 {
				return fmt.Errorf("requires target(s) or -f/--file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), &opts, args)
		},
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate(fmt.Sprintf("subscan %s (commit: %s, built: %s)\n", version, commit, date))
	opts.AddFlags(cmd.Flags())
	return cmd
}

func runScan(ctx context.Context, opts *Options, args []string) error {
	initLogger(opts)

	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			slog.Info("stopping scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Parse targets
	targets, err := parseTargets(opts, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no valid target domains found")
	}

	resolver, err := opts.Resolver()
	if err != nil {
		return err
	}
	scanCfg, err := opts.ScannerConfig(resolver)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Config{
		Enumerator:         ct.NewClient(ct.WithEndpoint(opts.CTEndpoint)),
		Resolver:           resolver,
		Scanner:            scanner.NewScanner(scanCfg),
		ResolveConcurrency: opts.ResolveConcurrency,
		ResolveTimeout:     opts.ResolveTimeout,
	})

	attrs := []any{"targets", len(targets), "resolver", resolver.Name(), "ports", scanCfg.Catalog.Len()}
	if sr, ok := resolver.(*dns.ServerResolver); ok {
		attrs = append(attrs, "servers", sr.Servers())
	}
	slog.Info("starting discovery", attrs...)
	startTime := time.Now()

	// Enumerate every target before opening the output, so an aggregator
	// failure leaves nothing behind
	subs, err := p.Discover(ctx, targets...)
	if err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}

	w, err := output.New(opts.OutputFormat, opts.OutputFile)
	if err != nil {
		return err
	}

	resultCount, scanErr := p.ScanStream(ctx, subs, w.Write)

	if closeErr := w.Close(); closeErr != nil && scanErr == nil {
		scanErr = closeErr
	}

	if scanErr != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	slog.Info("scan completed", "results", resultCount, "duration", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func parseTargets(opts *Options, args []string) ([]string, error) {
	if opts.InputFile != "" {
		slog.Debug("reading targets", "file", opts.InputFile)
		return input.ParseFile(opts.InputFile)
	}
	return input.ParseTargets(args)
}

func initLogger(opts *Options) {
	var level slog.Level
	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	config.Init()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
