package mcpserver

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
)

// IPAllowlist rejects HTTP requests whose client address is outside the
// configured IPs and CIDR blocks. /health is always reachable.
type IPAllowlist struct {
	networks []*net.IPNet
	logger   *log.Logger
}

func NewIPAllowlist(entries []string, logger *log.Logger) (*IPAllowlist, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[IPAuth] ", log.LstdFlags)
	}
	allowlist := &IPAllowlist{logger: logger}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid IP address: %s", entry)
			}
			if ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR block %s: %w", entry, err)
		}
		allowlist.networks = append(allowlist.networks, network)
	}

	if len(allowlist.networks) == 0 {
		return nil, fmt.Errorf("no allowed IPs specified")
	}
	return allowlist, nil
}

// Allowed reports whether ip falls in any allowed range.
func (a *IPAllowlist) Allowed(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range a.networks {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func (a *IPAllowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientIPFromRequest(r)
		if !a.Allowed(clientIP) {
			a.logger.Printf("Access denied for IP: %s (%s %s)", clientIP, r.Method, r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":-32603,"message":"Access denied: IP not authorized"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIPFromRequest prefers the first X-Forwarded-For entry, then
// X-Real-IP, then the connection address.
func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
