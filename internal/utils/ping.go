package utils

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// AuthorizerPingTimeout bounds the authorizer reachability probe
const AuthorizerPingTimeout = 1500 * time.Millisecond

var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"redis":  "6379",
	"rediss": "6380",
}

// ServiceAddress resolves host:port of a service URL, filling in the
// default port of its scheme.
func ServiceAddress(serviceURL string) (string, error) {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid URL: %q has no host", serviceURL)
	}

	port := parsedURL.Port()
	if port == "" {
		port = defaultPorts[parsedURL.Scheme]
		if port == "" {
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// PingService checks if a service is reachable at the given URL
func PingService(serviceURL string, timeout time.Duration) error {
	address, err := ServiceAddress(serviceURL)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	return nil
}

// PingAuthorizer checks if the Authorizer service is reachable
func PingAuthorizer(authzURL string) error {
	return PingService(authzURL, AuthorizerPingTimeout)
}
