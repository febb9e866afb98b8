package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is the set of networks whose forwarding headers are
// believed. The zero value trusts nobody.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies accepts CIDRs and bare IPs. Invalid entries are
// logged and skipped.
func ParseTrustedProxies(entries []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(entry); err == nil {
			tp.nets = append(tp.nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "entry", entry)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		tp.nets = append(tp.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return tp
}

// Len returns the number of trusted networks.
func (tp *TrustedProxies) Len() int { return len(tp.nets) }

// Contains reports whether ip belongs to a trusted network.
func (tp *TrustedProxies) Contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, network := range tp.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the originating client address of r. X-Real-IP, then
// the first X-Forwarded-For hop, are honoured only when the connection
// itself comes from a trusted proxy and the header holds a valid IP.
func (tp *TrustedProxies) ClientIP(r *http.Request) string {
	remote := extractIP(r.RemoteAddr)
	if remote == nil {
		return r.RemoteAddr
	}
	if !tp.Contains(remote) {
		return remote.String()
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return remote.String()
}

// TrustedRealIP rewrites r.RemoteAddr to the client IP as computed by
// ClientIP. Untrusted clients cannot pick their own rate-limit bucket or log
// identity by sending X-Real-IP themselves.
func TrustedRealIP(tp *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.RemoteAddr = tp.ClientIP(r)
			next.ServeHTTP(w, r)
		})
	}
}

// extractIPString returns the host part of addr, or addr itself.
func extractIPString(addr string) string {
	if ip := extractIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}

// extractIP parses an IP address from a host:port string or plain IP.
func extractIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
