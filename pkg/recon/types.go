// Package recon holds the values that flow through the discovery pipeline:
// candidate subdomains and the ports probed on them.
package recon

import (
	"slices"
	"strings"
)

// Port is the outcome of a single probe against one port of one host
type Port struct {
	Port   uint16 `json:"port"`
	IsOpen bool   `json:"is_open"`
}

// Subdomain is a domain name together with the open ports found on it.
// OpenPorts is empty until the port scanner produces a new value for it.
type Subdomain struct {
	Domain    string `json:"domain"`
	OpenPorts []Port `json:"open_ports"`
}

// NewSubdomain creates a subdomain with an empty port collection
func NewSubdomain(domain string) Subdomain {
	return Subdomain{Domain: domain, OpenPorts: []Port{}}
}

// WithPorts returns a copy of s carrying the given open ports.
// Closed entries are dropped.
func (s Subdomain) WithPorts(ports []Port) Subdomain {
	open := make([]Port, 0, len(ports))
	for _, p := range ports {
		if p.IsOpen {
			open = append(open, p)
		}
	}
	return Subdomain{Domain: s.Domain, OpenPorts: open}
}

// OpenPortNumbers returns the open port numbers in ascending order
func (s Subdomain) OpenPortNumbers() []uint16 {
	nums := make([]uint16, 0, len(s.OpenPorts))
	for _, p := range s.OpenPorts {
		if p.IsOpen {
			nums = append(nums, p.Port)
		}
	}
	slices.Sort(nums)
	return nums
}

// Domains extracts the domain names of subs, preserving order
func Domains(subs []Subdomain) []string {
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Domain
	}
	return names
}

// SortSubdomains orders subs by domain name. Results are produced in no
// particular order; callers that need stable output sort first.
func SortSubdomains(subs []Subdomain) {
	slices.SortFunc(subs, func(a, b Subdomain) int {
		return strings.Compare(a.Domain, b.Domain)
	})
}
