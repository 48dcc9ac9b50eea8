package input

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidTarget marks a target name that cannot be enumerated
var ErrInvalidTarget = errors.New("invalid target")

// maxNameLength is the longest DNS name in presentation form without the root dot
const maxNameLength = 253

// ParseTargets parses command-line targets (domain names, comma-separated).
// Names are normalized and duplicates dropped, keeping first-seen order.
func ParseTargets(targets []string) ([]string, error) {
	var names []string
	seen := make(map[string]struct{})

	for _, target := range targets {
		// Handle comma-separated values
		for part := range strings.SplitSeq(target, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}

			name, err := NormalizeTarget(part)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	return names, nil
}

// ParseFile reads target domains from a file (one per line).
// Blank lines and lines starting with # are skipped.
func ParseFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var names []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, err := NormalizeTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return names, nil
}

// NormalizeTarget trims, lowercases and strips the root dot from target,
// then rejects anything that is not a registrable domain or a name below one
func NormalizeTarget(target string) (string, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(target)), ".")

	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", ErrInvalidTarget)
	case strings.Contains(name, "*"):
		return "", fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTarget, target)
	case net.ParseIP(name) != nil:
		return "", fmt.Errorf("%w: %q is an IP address, not a domain", ErrInvalidTarget, target)
	case len(name) > maxNameLength:
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidTarget, target, maxNameLength)
	}

	for label := range strings.SplitSeq(name, ".") {
		if !validLabel(label) {
			return "", fmt.Errorf("%w: %q has a malformed label %q", ErrInvalidTarget, target, label)
		}
	}

	// "co.uk" or "com" would ask the aggregator for every certificate under a TLD
	if suffix, _ := publicsuffix.PublicSuffix(name); suffix == name {
		return "", fmt.Errorf("%w: %q is a public suffix", ErrInvalidTarget, target)
	}

	return name, nil
}

// validLabel accepts LDH labels plus underscore (seen in SRV-style names)
func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, c := range label {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
