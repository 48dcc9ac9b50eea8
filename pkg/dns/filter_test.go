package dns

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/velemoonkon/subscan/pkg/recon"
)

func mapResolver(known map[string]string) Resolver {
	return NewResolverFunc("map", func(ctx context.Context, host string) ([]net.IP, error) {
		if addr, ok := known[host]; ok {
			return []net.IP{net.ParseIP(addr)}, nil
		}
		return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
	})
}

func TestResolves(t *testing.T) {
	r := mapResolver(map[string]string{"a.example.com": "10.0.0.1"})

	assert.True(t, Resolves(context.Background(), r, "a.example.com", time.Second))
	assert.False(t, Resolves(context.Background(), r, "b.example.com", time.Second))
}

func TestResolvesTimeout(t *testing.T) {
	slow := NewResolverFunc("slow", func(ctx context.Context, host string) ([]net.IP, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	assert.False(t, Resolves(context.Background(), slow, "a.example.com", 50*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolvesEmptyAnswer(t *testing.T) {
	empty := NewResolverFunc("empty", func(ctx context.Context, host string) ([]net.IP, error) {
		return nil, nil
	})
	assert.False(t, Resolves(context.Background(), empty, "a.example.com", time.Second))
}

func TestFilterKeepsResolvableInOrder(t *testing.T) {
	r := mapResolver(map[string]string{
		"example.com":   "93.184.216.34",
		"a.example.com": "10.0.0.1",
		"c.example.com": "10.0.0.3",
	})

	candidates := []recon.Subdomain{
		recon.NewSubdomain("a.example.com"),
		recon.NewSubdomain("b.example.com"),
		recon.NewSubdomain("c.example.com"),
		recon.NewSubdomain("example.com"),
	}

	got := Filter(context.Background(), r, candidates, 2, time.Second)
	assert.Equal(t, []string{"a.example.com", "c.example.com", "example.com"}, recon.Domains(got))
}

func TestFilterEmpty(t *testing.T) {
	got := Filter(context.Background(), mapResolver(nil), nil, 4, time.Second)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	r := NewResolverFunc("counting", func(ctx context.Context, host string) ([]net.IP, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return []net.IP{net.IPv4(10, 0, 0, 1)}, nil
	})

	candidates := make([]recon.Subdomain, 40)
	for i := range candidates {
		candidates[i] = recon.NewSubdomain(fmt.Sprintf("h%d.example.com", i))
	}

	got := Filter(context.Background(), r, candidates, 4, time.Second)
	assert.Len(t, got, 40)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}
