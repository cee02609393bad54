package ratelimit

import "strings"

// unlimited is returned for routes that are never throttled.
var unlimited = EndpointConfig{}

// MatchEndpoint returns the config for method and path: an exact match first, then the
// longest prefix rule. Health checks are unlimited. Nil means use the default limit.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" {
		u := unlimited
		return &u
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if isPrefixRule(c.Path) && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}

func isPrefixRule(p string) bool {
	return strings.HasSuffix(p, "/") || strings.HasSuffix(p, "-")
}
