package dns

import (
	"errors"
	"time"

	"github.com/miekg/dns"
)

// ErrNoAddress is returned when a lookup completes without any A/AAAA record
var ErrNoAddress = errors.New("no address found")

// QueryOptions contains options for DNS queries
type QueryOptions struct {
	Timeout          time.Duration
	RecursionDesired bool
	UseEDNS          bool
	EDNSBufferSize   uint16
}

// DefaultQueryOptions returns default query options
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Timeout:          4 * time.Second,
		RecursionDesired: true,
		UseEDNS:          true,
		EDNSBufferSize:   4096,
	}
}

// newQuery builds a single-question message honouring opts
func newQuery(domain string, qtype uint16, opts QueryOptions) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = opts.RecursionDesired

	// Add EDNS if requested
	if opts.UseEDNS {
		opt := new(dns.OPT)
		opt.Hdr.Name = "."
		opt.Hdr.Rrtype = dns.TypeOPT
		opt.SetUDPSize(opts.EDNSBufferSize)
		msg.Extra = append(msg.Extra, opt)
	}
	return msg
}
