package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig builds a configuration with the default endpoint tiers. whitelist and
// blacklist are comma-separated client IPs.
func NewConfig(enabled bool, defaultLimit int, defaultWindow time.Duration, whitelist, blacklist string) *Config {
	if defaultWindow <= 0 {
		defaultWindow = time.Minute
	}
	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       ParseIPList(whitelist),
		Blacklist:       ParseIPList(blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: each request holds a browser for minutes
		{Path: "/generate-report", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5},

		// Tier 2: one short browser probe or a single write
		{Path: "/diagnose-url", Method: http.MethodPost, Limit: 60, Window: time.Hour, Burst: 10},
		{Path: "/jobs", Method: http.MethodPost, Limit: 100, Window: time.Minute, Burst: 10},

		// Tier 3: reads fall through to the default limit
		// Tier 4: /health and /metrics are unlimited, see MatchEndpoint
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a map.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
