package networking

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsLocalhost returns true if the host refers to the local machine.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	host = strings.ToLower(host)
	if host == "localhost" {
		return true
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateEndpointURL checks that an endpoint URL is well-formed and uses
// HTTPS, with a localhost exception for development.
func ValidateEndpointURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if u.Scheme != "https" && !IsLocalhost(u.Host) {
		return fmt.Errorf("endpoint must use HTTPS: %s", endpoint)
	}

	if u.Host == "" {
		return fmt.Errorf("endpoint missing host: %s", endpoint)
	}
	return nil
}
