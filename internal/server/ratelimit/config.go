package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit for one route. A Path ending in "/" or "-" matches by prefix.
type EndpointConfig struct {
	Path   string
	Method string
	// Limit is the number of requests allowed per Window.
	Limit  int
	Window time.Duration
	// Burst is the bucket capacity. Zero means Limit.
	Burst  int
}

// LoadConfig loads rate limiting configuration from RATE_LIMIT_* environment variables.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(getEnvInt("RATE_LIMIT_PROCESS_PER_HOUR", 30)),
	}
}

// DefaultEndpointConfigs limits the model-calling routes to processPerHour requests per
// hour; batch routes get a third of that. Decision writes get a moderate limit.
func DefaultEndpointConfigs(processPerHour int) []EndpointConfig {
	batch := max(processPerHour/3, 1)
	return []EndpointConfig{
		// Model calls: strictest.
		{Path: "/process-pdf", Method: http.MethodPost, Limit: processPerHour, Window: time.Hour, Burst: 5},
		{Path: "/process-batch", Method: http.MethodPost, Limit: batch, Window: time.Hour, Burst: 2},
		{Path: "/process-batch/stream", Method: http.MethodPost, Limit: batch, Window: time.Hour, Burst: 2},

		// Writes.
		{Path: "/api/decisions", Method: http.MethodPost, Limit: 100, Window: time.Minute, Burst: 10},

		// File downloads build the workbook on demand.
		{Path: "/download-", Method: http.MethodGet, Limit: 60, Window: time.Minute, Burst: 10},
	}
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
