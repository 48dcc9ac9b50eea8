package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable prefix for all subscan settings
const envPrefix = "SUBSCAN_"

// HTTPClientConfig contains configurable HTTP client settings
type HTTPClientConfig struct {
	// Response size limits (bytes)
	MaxResponseSize    int64 // CT aggregator JSON body
	MaxDoHResponseSize int64

	// HTTP client connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// HTTP client timeouts
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	KeepAlive      time.Duration

	// Redirects followed before giving up
	MaxRedirects int

	UserAgent string
}

// CTConfig contains certificate transparency aggregator settings
type CTConfig struct {
	// Base URL of the aggregator search endpoint
	Endpoint string
}

// ScannerConfig contains configurable scanner settings
type ScannerConfig struct {
	// Channel buffer sizes
	SubdomainChannelBuffer int
	ResultChannelBuffer    int

	// Worker pool and probe fan-out
	Workers          int
	ProbeConcurrency int
	MaxSockets       int
	ProbeTimeout     time.Duration

	// Max subdomains dispatched per second (0 = unlimited)
	RateLimit int
}

// DNSConfig contains DNS resolution settings
type DNSConfig struct {
	ResolveTimeout time.Duration
	Concurrency    int

	// Validation settings (for security vs speed trade-offs)
	ValidateResponseID bool // Default: false for speed, enable for security
}

// DefaultHTTPClientConfig returns default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		MaxResponseSize:     getEnvInt64("HTTP_MAX_RESPONSE_SIZE", 64*1024*1024),      // 64MB
		MaxDoHResponseSize:  getEnvInt64("MAX_DOH_RESPONSE_SIZE", 64*1024),            // 64KB
		MaxIdleConns:        getEnvInt("HTTP_MAX_IDLE_CONNS", 100),                    // 100 connections
		MaxIdleConnsPerHost: getEnvInt("HTTP_MAX_IDLE_CONNS_PER_HOST", 10),            // 10 per host
		IdleConnTimeout:     getEnvDuration("HTTP_IDLE_CONN_TIMEOUT", 90*time.Second), // 90s
		DialTimeout:         getEnvDuration("HTTP_DIAL_TIMEOUT", 5*time.Second),       // 5s
		RequestTimeout:      getEnvDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),   // 10s
		KeepAlive:           getEnvDuration("HTTP_KEEPALIVE", 30*time.Second),         // 30s
		MaxRedirects:        getEnvInt("HTTP_MAX_REDIRECTS", 4),
		UserAgent:           getEnvString("HTTP_USER_AGENT", "subscan/1.0"),
	}
}

// DefaultCTConfig returns default CT aggregator configuration
func DefaultCTConfig() CTConfig {
	return CTConfig{
		Endpoint: getEnvString("CT_ENDPOINT", "https://crt.sh/"),
	}
}

// DefaultScannerConfig returns default scanner configuration
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		SubdomainChannelBuffer: getEnvInt("SCANNER_SUBDOMAIN_BUFFER", 100),            // 100 subdomains
		ResultChannelBuffer:    getEnvInt("SCANNER_RESULT_BUFFER", 100),               // 100 results
		Workers:                getEnvInt("SCANNER_WORKERS", 8),                       // 8 subdomains at once
		ProbeConcurrency:       getEnvInt("SCANNER_PROBE_CONCURRENCY", 100),           // whole catalog at once
		MaxSockets:             getEnvInt("SCANNER_MAX_SOCKETS", 1024),                // workers x probes cap
		ProbeTimeout:           getEnvDuration("SCANNER_PROBE_TIMEOUT", 3*time.Second), // 3s per connect
		RateLimit:              getEnvInt("SCANNER_RATE_LIMIT", 0),                    // unlimited
	}
}

// DefaultDNSConfig returns default DNS configuration
func DefaultDNSConfig() DNSConfig {
	return DNSConfig{
		ResolveTimeout: getEnvDuration("DNS_RESOLVE_TIMEOUT", 4*time.Second),
		Concurrency:    getEnvInt("DNS_CONCURRENCY", 16),
		// Validation OFF by default for speed
		// Enable with SUBSCAN_DNS_VALIDATE_RESPONSE_ID=true
		ValidateResponseID: getEnvBool("DNS_VALIDATE_RESPONSE_ID", false),
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable with a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "5s", "10m", "1h"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable with a default value
// Accepts: "true", "false", "1", "0", "yes", "no" (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvString retrieves a string environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultValue
}

// Global configuration instances (initialized once at startup)
var (
	HTTP    = DefaultHTTPClientConfig()
	CT      = DefaultCTConfig()
	Scanner = DefaultScannerConfig()
	DNS     = DefaultDNSConfig()
)

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	HTTP = DefaultHTTPClientConfig()
	CT = DefaultCTConfig()
	Scanner = DefaultScannerConfig()
	DNS = DefaultDNSConfig()
}
