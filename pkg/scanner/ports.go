package scanner

import (
	"context"
	"iter"
	"slices"

	"github.com/velemoonkon/subscan/pkg/recon"
	"golang.org/x/sync/errgroup"
)

// chanToSeq converts a channel to an iterator for use with slices.Collect
func chanToSeq[T any](ch <-chan T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range ch {
			if !yield(v) {
				return
			}
		}
	}
}

// ScanPorts probes every catalog port on host and returns the open ones in
// ascending port order. At most concurrency probes are in flight; the call
// returns only after every probe has finished.
func ScanPorts(ctx context.Context, prober Prober, host string, catalog Catalog, concurrency int) []recon.Port {
	ports := catalog.Ports()
	if len(ports) == 0 {
		return []recon.Port{}
	}

	// Probes never fail, so the group is used only for its limit
	var g errgroup.Group
	g.SetLimit(max(1, min(concurrency, len(ports))))

	openPortsChan := make(chan recon.Port, len(ports))

	for _, port := range ports {
		g.Go(func() error {
			if result := prober.Probe(ctx, host, port); result.IsOpen {
				openPortsChan <- result
			}
			return nil
		})
	}

	g.Wait()
	close(openPortsChan)

	open := slices.Collect(chanToSeq(openPortsChan))
	slices.SortFunc(open, func(a, b recon.Port) int {
		return int(a.Port) - int(b.Port)
	})
	return open
}
