package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig controls how the client address is resolved. Forwarding headers
// are honored only when the direct peer falls inside TrustedProxies;
// otherwise an attacker could pick their own identity for rate limiting and
// audit records.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges, bare IPs accepted as /32 or /128
}

// ExtractClientIP resolves the originating client address for a request.
// If the connection arrives from a trusted proxy, the first valid address in
// X-Forwarded-For wins, then X-Real-IP. Everything else uses the socket peer.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := peerAddress(r)

	if config == nil || !addressMatches(peer, config.TrustedProxies) {
		return peer
	}

	if ip := firstForwardedAddress(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// firstForwardedAddress returns the leftmost parseable entry of an
// X-Forwarded-For value. Proxies append, so the first entry is the client.
func firstForwardedAddress(xff string) string {
	for _, part := range strings.Split(xff, ",") {
		if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}

// peerAddress strips the port from RemoteAddr if one is present.
func peerAddress(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// addressMatches reports whether addr falls inside any of the given ranges.
// Entries that parse as neither a CIDR nor a bare IP are skipped.
func addressMatches(addr string, ranges []string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}

	for _, entry := range ranges {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			if ipNet.Contains(ip) {
				return true
			}
			continue
		}
		if single := net.ParseIP(entry); single != nil && single.Equal(ip) {
			return true
		}
	}
	return false
}
