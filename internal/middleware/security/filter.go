// Package security provides request filtering and body size limits.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Config holds the configuration for security middleware
type Config struct {
	// FilterEnabled enables the scanner/traversal filter
	FilterEnabled bool
	// MaxBodySizeKB is the maximum request body size in kilobytes. Zero disables the limit.
	MaxBodySizeKB int
	// ExemptPaths bypass the filter entirely
	ExemptPaths []string
	// Reject writes the response for a blocked request. Defaults to a JSON error envelope.
	Reject func(w http.ResponseWriter, r *http.Request)
}

// DefaultExemptPaths are probe and discovery endpoints that never need filtering
var DefaultExemptPaths = []string{"/health", "/healthz", "/readyz", "/actions.json"}

// blockedPathPrefixes are path prefixes that indicate scanner traffic
var blockedPathPrefixes = []string{
	"/.php",
	"/wp-admin",
	"/wp-includes",
	"/wp-content",
	"/wp-login",
	"/.git/",
	"/.env",
	"/web-inf/",
	"/cgi-bin/",
	"/admin/",
	"/phpmyadmin",
	"/phpinfo",
	"/shell",
	"/config.",
	"/.htaccess",
	"/.htpasswd",
	"/server-status",
	"/xmlrpc.php",
}

// blockedPathPatterns may appear anywhere in the path
var blockedPathPatterns = []string{
	"../",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%00",
	"\x00",
}

// blockedMethods are never served
var blockedMethods = map[string]bool{
	http.MethodTrace:   true,
	http.MethodConnect: true,
}

// Blocked reports whether a request looks like a probe or a traversal attempt.
func Blocked(r *http.Request) bool {
	if blockedMethods[r.Method] {
		return true
	}

	path := strings.ToLower(r.URL.Path)
	for _, prefix := range blockedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if containsPattern(path) {
		return true
	}

	// The escaped form catches encodings that decode to something harmless looking
	raw := strings.ToLower(r.URL.EscapedPath())
	if containsPattern(raw) {
		return true
	}
	if decoded, err := url.PathUnescape(raw); err == nil && decoded != path {
		return containsPattern(strings.ToLower(decoded))
	}
	return false
}

func containsPattern(s string) bool {
	for _, pattern := range blockedPathPatterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}

// FilterMiddleware returns middleware that blocks requests matching known attack patterns.
func FilterMiddleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.FilterEnabled {
			return next
		}

		exempt := make(map[string]bool, len(cfg.ExemptPaths))
		for _, p := range cfg.ExemptPaths {
			exempt[p] = true
		}
		reject := cfg.Reject
		if reject == nil {
			reject = writeBlockedResponse
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] || !Blocked(r) {
				next.ServeHTTP(w, r)
				return
			}
			reject(w, r)
		})
	}
}

// writeBlockedResponse writes a generic 400 without revealing what triggered the block
func writeBlockedResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
