package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velemoonkon/subscan/pkg/ct"
)

// startLoopbackDNS answers every A query with 127.0.0.1 except for names
// starting with "gone."
func startLoopbackDNS(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch {
		case strings.HasPrefix(q.Name, "gone."):
			m.Rcode = dns.RcodeNameError
		case q.Qtype == dns.TypeA:
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.IPv4(127, 0, 0, 1).To4(),
			})
		}
		w.WriteMsg(m)
	})}

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func startCT(t *testing.T, nameValue string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ct.Record{{NameValue: nameValue}})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

func listenPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func execute(t *testing.T, args ...string) error {
	t.Helper()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	port := listenPort(t)

	portsFile := filepath.Join(dir, "ports.yaml")
	require.NoError(t, os.WriteFile(portsFile, fmt.Appendf(nil, "ports: [%d]\n", port), 0o600))
	outFile := filepath.Join(dir, "out.txt")

	err := execute(t,
		"example.test",
		"--ct-endpoint", startCT(t, "api.example.test\n*.example.test\ngone.example.test"),
		"--resolver", "udp",
		"--resolvers", startLoopbackDNS(t),
		"--ports-file", portsFile,
		"--probe-timeout", "1s",
		"-o", outFile,
		"-q",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	blocks := strings.Split(strings.TrimSuffix(string(data), "\n\n"), "\n\n")
	assert.ElementsMatch(t, []string{
		fmt.Sprintf("api.example.test:\n%d", port),
		fmt.Sprintf("example.test:\n%d", port),
	}, blocks)
}

func TestRunAggregatorFailureLeavesNoOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	outFile := filepath.Join(t.TempDir(), "out.txt")
	err := execute(t, "example.test", "--ct-endpoint", srv.URL+"/", "-o", outFile, "-q")

	require.Error(t, err)
	assert.ErrorIs(t, err, ct.ErrUnexpectedStatus)
	assert.NoFileExists(t, outFile)
}

func TestRunRejectsInvalidTargets(t *testing.T) {
	assert.Error(t, execute(t, "*.example.com", "-q"))
	assert.Error(t, execute(t, "co.uk", "-q"))
	assert.Error(t, execute(t, "-q"))
}
