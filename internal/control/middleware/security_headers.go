// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net"
	"net/http"
	"strings"
)

// DefaultCSP locks down the JSON API. Frames are served as images, nothing else loads.
const DefaultCSP = "default-src 'none'; img-src 'self' data: blob:; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that adds common security headers to all responses.
// It requires trustedProxies to safely evaluate X-Forwarded-Proto headers.
func SecurityHeaders(csp string, trustedProxies []*net.IPNet) func(http.Handler) http.Handler {
	if csp == "" {
		csp = DefaultCSP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only honor X-Forwarded-Proto if the remote IP is a trusted proxy.
			isHTTPS := r.TLS != nil
			if !isHTTPS && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				ipStr, _, _ := net.SplitHostPort(r.RemoteAddr)
				if ipStr == "" {
					ipStr = r.RemoteAddr
				}
				if ip := net.ParseIP(ipStr); ip != nil && IsIPAllowed(ip, trustedProxies) {
					isHTTPS = true
				}
			}
			if isHTTPS {
				w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}

			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// IsIPAllowed reports whether ip falls inside any of nets.
func IsIPAllowed(ip net.IP, nets []*net.IPNet) bool {
	for _, n := range nets {
		if n != nil && n.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseCIDRs parses entries such as "10.0.0.0/8" or a bare IP.
// Invalid entries are skipped.
func ParseCIDRs(entries []string) []*net.IPNet {
	var out []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			out = append(out, n)
		}
	}
	return out
}
