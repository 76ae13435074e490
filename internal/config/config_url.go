// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Accepted URL schemes per endpoint.
var (
	httpSchemes  = []string{"http", "https"}
	natsSchemes  = []string{"nats", "tls", "ws", "wss"}
	redisSchemes = []string{"redis", "rediss"}
)

// validateURL checks that raw is an absolute URL with a host and one of
// schemes. Paths are allowed (WebDAV roots live below the host); query
// strings are not, except for redis where they carry client options.
func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required (e.g. %s://localhost:1234)", schemes[0])
	}
	if u.RawQuery != "" && !slices.Equal(schemes, redisSchemes) {
		return fmt.Errorf("query parameters are not allowed, remove ?%s", u.RawQuery)
	}
	return nil
}
