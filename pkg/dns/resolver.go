package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver looks up the A/AAAA addresses of a host name.
// A lookup that completes with no address returns ErrNoAddress.
type Resolver interface {
	// Name returns the resolver identifier (e.g., "system", "udp", "doh")
	Name() string

	// LookupIP returns every address found for host
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

// ResolverFunc adapts a plain function to the Resolver interface
type ResolverFunc struct {
	name     string
	lookupFn func(ctx context.Context, host string) ([]net.IP, error)
}

// NewResolverFunc creates a Resolver from a function
func NewResolverFunc(name string, fn func(ctx context.Context, host string) ([]net.IP, error)) Resolver {
	return &ResolverFunc{name: name, lookupFn: fn}
}

func (r *ResolverFunc) Name() string {
	return r.name
}

func (r *ResolverFunc) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	return r.lookupFn(ctx, host)
}

// SystemResolver uses the operating system's resolver configuration
type SystemResolver struct {
	resolver *net.Resolver
}

// NewSystemResolver creates a resolver backed by net.DefaultResolver
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{resolver: net.DefaultResolver}
}

func (r *SystemResolver) Name() string {
	return "system"
}

func (r *SystemResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := r.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
		}
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

type queryFunc func(ctx context.Context, server string, domain string, qtype uint16, opts QueryOptions) (*dns.Msg, time.Duration, error)

// ServerResolver queries explicit servers with miekg/dns over one transport.
// Servers are tried in order until one answers.
type ServerResolver struct {
	name    string
	servers []string
	opts    QueryOptions
	query   queryFunc
}

// NewUDPResolver creates a resolver querying servers over UDP (TCP on truncation)
func NewUDPResolver(servers []string, opts QueryOptions) *ServerResolver {
	return &ServerResolver{name: "udp", servers: servers, opts: opts, query: QueryUDP}
}

// NewTCPResolver creates a resolver querying servers over TCP
func NewTCPResolver(servers []string, opts QueryOptions) *ServerResolver {
	return &ServerResolver{name: "tcp", servers: servers, opts: opts, query: QueryTCP}
}

// NewDoTResolver creates a resolver querying servers over DNS over TLS
func NewDoTResolver(servers []string, opts QueryOptions) *ServerResolver {
	return &ServerResolver{name: "dot", servers: servers, opts: opts, query: QueryDoT}
}

// NewDoHResolver creates a resolver querying servers over DNS over HTTPS.
// Servers are host names or full endpoint URLs.
func NewDoHResolver(servers []string, opts QueryOptions) *ServerResolver {
	return &ServerResolver{name: "doh", servers: servers, opts: opts, query: QueryDoH}
}

func (r *ServerResolver) Name() string {
	return r.name
}

// Servers returns the configured servers in query order
func (r *ServerResolver) Servers() []string {
	return r.servers
}

func (r *ServerResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	var lastErr error

	for i, server := range r.servers {
		serverCtx, cancel := serverBudget(ctx, len(r.servers)-i)
		ips, err := r.lookupServer(serverCtx, server, host)
		cancel()
		if err == nil || errors.Is(err, ErrNoAddress) {
			return ips, err
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no DNS servers configured")
	}
	return nil, fmt.Errorf("%s lookup %s: %w", r.name, host, lastErr)
}

// serverBudget splits what is left of ctx's deadline evenly over the
// servers not yet tried, so a server that never answers cannot use up
// the time of the ones after it
func serverBudget(ctx context.Context, remaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || remaining <= 1 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/time.Duration(remaining))
}

// lookupServer asks one server for A then AAAA records. NXDOMAIN, or an
// empty NOERROR to both questions, decides the outcome; anything less
// lets the caller try the next server.
func (r *ServerResolver) lookupServer(ctx context.Context, server, host string) ([]net.IP, error) {
	var ips []net.IP
	answered := 0
	var lastErr error

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, _, err := r.query(ctx, server, host, qtype, r.opts)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			answered++
			ips = append(ips, addressesFrom(resp)...)
		case dns.RcodeNameError:
			// NXDOMAIN holds for every record type
			return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
		default:
			lastErr = fmt.Errorf("server %s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}

	if len(ips) > 0 {
		return ips, nil
	}
	if answered == 2 {
		return nil, fmt.Errorf("%s: %w", host, ErrNoAddress)
	}
	return nil, lastErr
}

// addressesFrom extracts A and AAAA answers, following whatever CNAME
// chain the recursive server already expanded
func addressesFrom(resp *dns.Msg) []net.IP {
	var ips []net.IP
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			ips = append(ips, rec.A)
		case *dns.AAAA:
			ips = append(ips, rec.AAAA)
		}
	}
	return ips
}

// Resolver kinds accepted by NewResolver
const (
	KindSystem = "system"
	KindUDP    = "udp"
	KindTCP    = "tcp"
	KindDoT    = "dot"
	KindDoH    = "doh"
)

// NewResolver builds a resolver of the given kind. Every kind except
// system needs at least one server.
func NewResolver(kind string, servers []string, opts QueryOptions) (Resolver, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))

	if kind == "" || kind == KindSystem {
		return NewSystemResolver(), nil
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%s resolver requires at least one server", kind)
	}

	switch kind {
	case KindUDP:
		return NewUDPResolver(servers, opts), nil
	case KindTCP:
		return NewTCPResolver(servers, opts), nil
	case KindDoT:
		return NewDoTResolver(servers, opts), nil
	case KindDoH:
		return NewDoHResolver(servers, opts), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q (want system, udp, tcp, dot or doh)", kind)
	}
}
