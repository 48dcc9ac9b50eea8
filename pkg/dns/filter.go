package dns

import (
	"context"
	"log/slog"
	"time"

	"github.com/velemoonkon/subscan/pkg/recon"
	"golang.org/x/sync/errgroup"
)

// Resolves reports whether name has at least one address. Timeouts and
// NXDOMAIN are a plain false, never an error.
func Resolves(ctx context.Context, r Resolver, name string, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ips, err := r.LookupIP(ctx, name)
	if err != nil {
		slog.Debug("candidate does not resolve", "domain", name, "resolver", r.Name(), "error", err)
		return false
	}
	return len(ips) > 0
}

// Filter keeps the candidates that resolve, in their input order.
// At most concurrency lookups are in flight at once.
func Filter(ctx context.Context, r Resolver, candidates []recon.Subdomain, concurrency int, timeout time.Duration) []recon.Subdomain {
	if len(candidates) == 0 {
		return []recon.Subdomain{}
	}

	// Each goroutine writes only its own slot
	keep := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(max(1, min(concurrency, len(candidates))))

	for i, candidate := range candidates {
		g.Go(func() error {
			keep[i] = Resolves(ctx, r, candidate.Domain, timeout)
			return nil
		})
	}
	g.Wait()

	resolved := make([]recon.Subdomain, 0, len(candidates))
	for i, candidate := range candidates {
		if keep[i] {
			resolved = append(resolved, candidate)
		}
	}

	slog.Debug("resolution filter done", "candidates", len(candidates), "resolved", len(resolved))
	return resolved
}
