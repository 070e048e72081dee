package util

import (
	"net"
	"strings"
)

// ExtractIPAddress returns the client address of a request: the first hop of
// X-Forwarded-For when present, otherwise the remote address, without port.
func ExtractIPAddress(remoteAddr string, xForwardedFor string) string {
	if first, _, _ := strings.Cut(xForwardedFor, ","); strings.TrimSpace(first) != "" {
		return stripPort(strings.TrimSpace(first))
	}
	return stripPort(remoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
