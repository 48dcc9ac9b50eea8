package dns

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velemoonkon/subscan/pkg/recon"
)

// testZone maps names to the addresses the fake server answers with
var testZone = map[string][]string{
	"example.com":       {"93.184.216.34"},
	"a.example.com":     {"10.0.0.1", "2001:db8::1"},
	"v6.example.com":    {"2001:db8::2"},
	"empty.example.com": {},
}

// answer builds the fake server's reply for req
func answer(req *dns.Msg) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(req)

	q := req.Question[0]
	addrs, ok := testZone[strings.TrimSuffix(q.Name, ".")]
	if !ok {
		m.Rcode = dns.RcodeNameError
		return m
	}

	for _, a := range addrs {
		ip := net.ParseIP(a)
		hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: 60}
		switch {
		case ip.To4() != nil && q.Qtype == dns.TypeA:
			hdr.Rrtype = dns.TypeA
			m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: ip.To4()})
		case ip.To4() == nil && q.Qtype == dns.TypeAAAA:
			hdr.Rrtype = dns.TypeAAAA
			m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: ip})
		}
	}
	return m
}

// startServer runs an in-process DNS server on loopback and returns its address
func startServer(t *testing.T, network string) string {
	t.Helper()

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		w.WriteMsg(answer(req))
	})

	srv := &dns.Server{Handler: handler}
	var addr string
	switch network {
	case "udp":
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		require.NoError(t, err)
		srv.PacketConn = pc
		addr = pc.LocalAddr().String()
	case "tcp":
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		srv.Listener = ln
		addr = ln.Addr().String()
	default:
		t.Fatalf("unsupported network %s", network)
	}

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go srv.ActivateAndServe()
	<-started

	t.Cleanup(func() { srv.Shutdown() })
	return addr
}

// startDoHServer serves RFC 8484 POST requests over plain HTTP
func startDoHServer(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req := new(dns.Msg)
		if err := req.Unpack(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wire, err := answer(req).Pack()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/dns-message")
		w.Write(wire)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + DefaultDoHPath
}

func testOpts() QueryOptions {
	opts := DefaultQueryOptions()
	opts.Timeout = 2 * time.Second
	return opts
}

func TestServerResolvers(t *testing.T) {
	resolvers := []Resolver{
		NewUDPResolver([]string{startServer(t, "udp")}, testOpts()),
		NewTCPResolver([]string{startServer(t, "tcp")}, testOpts()),
		NewDoHResolver([]string{startDoHServer(t)}, testOpts()),
	}

	for _, r := range resolvers {
		t.Run(r.Name(), func(t *testing.T) {
			ctx := context.Background()

			ips, err := r.LookupIP(ctx, "a.example.com")
			require.NoError(t, err)
			require.Len(t, ips, 2)
			assert.Equal(t, "10.0.0.1", ips[0].String())
			assert.Equal(t, "2001:db8::1", ips[1].String())

			ips, err = r.LookupIP(ctx, "v6.example.com")
			require.NoError(t, err)
			assert.Equal(t, []string{"2001:db8::2"}, ipStrings(ips))

			_, err = r.LookupIP(ctx, "missing.example.com")
			assert.ErrorIs(t, err, ErrNoAddress)

			_, err = r.LookupIP(ctx, "empty.example.com")
			assert.ErrorIs(t, err, ErrNoAddress)
		})
	}
}

func TestServerResolverFallsThroughDeadServer(t *testing.T) {
	// Nothing listens on the first server
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := pc.LocalAddr().String()
	pc.Close()

	opts := testOpts()
	opts.Timeout = 300 * time.Millisecond
	r := NewUDPResolver([]string{dead, startServer(t, "udp")}, opts)

	ips, err := r.LookupIP(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"93.184.216.34"}, ipStrings(ips))
}

// startSilentServer binds a UDP socket that never replies
func startSilentServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc.LocalAddr().String()
}

// startAAAAOnlyServer drops A queries and answers AAAA with an empty NOERROR
func startAAAAOnlyServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		if req.Question[0].Qtype == dns.TypeA {
			return
		}
		m := new(dns.Msg)
		m.SetReply(req)
		w.WriteMsg(m)
	})}

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go srv.ActivateAndServe()
	<-started

	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestServerResolverSkipsSilentServer(t *testing.T) {
	opts := testOpts()
	opts.Timeout = 400 * time.Millisecond
	r := NewUDPResolver([]string{startSilentServer(t), startServer(t, "udp")}, opts)

	// The whole lookup gets the same budget as a single query
	assert.True(t, Resolves(context.Background(), r, "example.com", 400*time.Millisecond))

	got := Filter(context.Background(), r, []recon.Subdomain{recon.NewSubdomain("example.com")}, 1, 400*time.Millisecond)
	assert.Equal(t, []string{"example.com"}, recon.Domains(got))
}

func TestServerResolverPartialAnswerTriesNextServer(t *testing.T) {
	opts := testOpts()
	opts.Timeout = 300 * time.Millisecond
	r := NewUDPResolver([]string{startAAAAOnlyServer(t), startServer(t, "udp")}, opts)

	ips, err := r.LookupIP(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"93.184.216.34"}, ipStrings(ips))
}

func TestServerResolverAllServersDown(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := pc.LocalAddr().String()
	pc.Close()

	opts := testOpts()
	opts.Timeout = 300 * time.Millisecond
	r := NewUDPResolver([]string{dead}, opts)

	_, err = r.LookupIP(context.Background(), "example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoAddress))
}

func TestNewResolver(t *testing.T) {
	tests := []struct {
		kind     string
		servers  []string
		wantName string
		wantErr  bool
	}{
		{kind: "", wantName: "system"},
		{kind: "system", wantName: "system"},
		{kind: "UDP", servers: []string{"1.1.1.1"}, wantName: "udp"},
		{kind: "tcp", servers: []string{"1.1.1.1"}, wantName: "tcp"},
		{kind: "dot", servers: []string{"1.1.1.1"}, wantName: "dot"},
		{kind: "doh", servers: []string{"cloudflare-dns.com"}, wantName: "doh"},
		{kind: "udp", wantErr: true},
		{kind: "carrier-pigeon", servers: []string{"1.1.1.1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			r, err := NewResolver(tt.kind, tt.servers, DefaultQueryOptions())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, r.Name())
			if sr, ok := r.(*ServerResolver); ok {
				assert.Equal(t, tt.servers, sr.Servers())
			}
		})
	}
}

func TestDoHURL(t *testing.T) {
	assert.Equal(t, "https://dns.example/dns-query", dohURL("dns.example"))
	assert.Equal(t, "http://127.0.0.1:8080/q", dohURL("http://127.0.0.1:8080/q"))
}

func TestSystemResolverLocalhost(t *testing.T) {
	r := NewSystemResolver()
	assert.Equal(t, "system", r.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	ips, err := r.LookupIP(ctx, "localhost")
	require.NoError(t, err)
	require.NotEmpty(t, ips)
	for _, ip := range ips {
		assert.True(t, ip.IsLoopback(), "localhost resolved to %s", ip)
	}
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, len(ips))
	for i, ip := range ips {
		out[i] = ip.String()
	}
	return out
}
