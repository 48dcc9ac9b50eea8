package scanner

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/velemoonkon/subscan/pkg/recon"
)

// Prober classifies one port of one host as open or closed.
// A probe never fails: every connection error is a closed port.
type Prober interface {
	// Name returns the probe identifier (e.g., "tcp")
	Name() string

	// Probe attempts host:port and reports the outcome
	Probe(ctx context.Context, host string, port uint16) recon.Port
}

// ProberFunc is a function adapter for Prober interface
// Allows using simple functions as probers without creating a struct
type ProberFunc struct {
	name    string
	probeFn func(ctx context.Context, host string, port uint16) recon.Port
}

// NewProberFunc creates a Prober from a function
func NewProberFunc(name string, fn func(ctx context.Context, host string, port uint16) recon.Port) Prober {
	return &ProberFunc{name: name, probeFn: fn}
}

func (p *ProberFunc) Name() string {
	return p.name
}

func (p *ProberFunc) Probe(ctx context.Context, host string, port uint16) recon.Port {
	return p.probeFn(ctx, host, port)
}

// TCPProber classifies ports with a single TCP connect
type TCPProber struct {
	Timeout time.Duration
}

// NewTCPProber creates a TCP connect prober
func NewTCPProber(timeout time.Duration) *TCPProber {
	return &TCPProber{Timeout: timeout}
}

func (p *TCPProber) Name() string {
	return "tcp"
}

func (p *TCPProber) Probe(ctx context.Context, host string, port uint16) recon.Port {
	return ProbePort(ctx, host, port, p.Timeout)
}

// ProbePort checks if a TCP port is open. The connection is closed as soon
// as it is established; refusal, reset and timeout all mean closed.
func ProbePort(ctx context.Context, host string, port uint16, timeout time.Duration) recon.Port {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	dialer := &net.Dialer{
		Timeout: timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return recon.Port{Port: port, IsOpen: false}
	}
	conn.Close()

	return recon.Port{Port: port, IsOpen: true}
}
