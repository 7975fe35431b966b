// Package realip resolves who a request really came from when CleanFi runs
// behind a reverse proxy: the client IP for logging and rate limiting, and
// the public origin (scheme and host) that action icons are resolved against.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClientIPKey is the context key for the real client IP
	ClientIPKey contextKey = "client_ip"

	originKey contextKey = "origin"
)

// Config holds the configuration for the real IP middleware
type Config struct {
	// TrustProxy enables X-Forwarded-* header parsing
	TrustProxy bool
	// TrustedProxies lists proxy addresses as CIDR ranges or single IPs
	TrustedProxies []string
}

// Origin is the scheme and host the client addressed.
type Origin struct {
	Scheme string
	Host   string
}

// resolver holds the parsed proxy allow-list
type resolver struct {
	trustProxy bool
	trusted    []netip.Prefix
}

func newResolver(cfg Config) *resolver {
	res := &resolver{trustProxy: cfg.TrustProxy}
	if !cfg.TrustProxy {
		return res
	}
	for _, entry := range cfg.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			res.trusted = append(res.trusted, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			res.trusted = append(res.trusted, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return res
}

// Middleware returns an HTTP middleware that records the client IP and
// origin in the request context. Forwarded headers are honoured only when
// the direct peer is a trusted proxy.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	res := newResolver(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer := extractIP(r.RemoteAddr)
			fromProxy := res.trustProxy && res.isTrusted(peer)

			ctx := context.WithValue(r.Context(), ClientIPKey, res.clientIP(r, peer, fromProxy))
			ctx = context.WithValue(ctx, originKey, resolveOrigin(r, fromProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP walks X-Forwarded-For from the right and returns the first hop
// that is not a trusted proxy.
func (res *resolver) clientIP(r *http.Request, peer string, fromProxy bool) string {
	if !fromProxy {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !res.isTrusted(hop) {
			return hop
		}
	}
	// Every hop is a proxy; the leftmost is the closest thing to a client
	return strings.TrimSpace(hops[0])
}

func (res *resolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range res.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func resolveOrigin(r *http.Request, fromProxy bool) Origin {
	o := Origin{Scheme: "http", Host: r.Host}
	if r.TLS != nil {
		o.Scheme = "https"
	}
	if !fromProxy {
		return o
	}
	if proto := strings.ToLower(firstValue(r.Header.Get("X-Forwarded-Proto"))); proto == "http" || proto == "https" {
		o.Scheme = proto
	}
	if host := firstValue(r.Header.Get("X-Forwarded-Host")); host != "" {
		o.Host = host
	}
	return o
}

// firstValue returns the first element of a comma-separated header.
func firstValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// extractIP extracts the IP address from an address:port string
func extractIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// GetClientIP retrieves the real client IP from the request context.
// Falls back to RemoteAddr if not set.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return extractIP(r.RemoteAddr)
}

// GetOrigin retrieves the public origin from the request context. Without
// the middleware it is derived from the request alone.
func GetOrigin(r *http.Request) Origin {
	if o, ok := r.Context().Value(originKey).(Origin); ok {
		return o
	}
	return resolveOrigin(r, false)
}
