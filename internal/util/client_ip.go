package util

import (
	"net"
	"net/http"
	"strings"
)

var trustedProxyNets []*net.IPNet

// SetTrustedProxies configures which peers are allowed to assert
// X-Forwarded-For. Invalid CIDRs are reported back so config loading
// can fail loudly instead of silently trusting nothing.
func SetTrustedProxies(cidrs []string) error {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, parsed, err := net.ParseCIDR(cidr)
		if err != nil {
			return err
		}
		nets = append(nets, parsed)
	}
	trustedProxyNets = nets
	return nil
}

func isTrustedProxy(ip net.IP) bool {
	for _, n := range trustedProxyNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the originating client address. X-Forwarded-For is
// honored only when the direct peer is a configured trusted proxy,
// taking the right-most address not belonging to a trusted proxy.
func ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	peer := net.ParseIP(remote)
	if peer == nil || !isTrustedProxy(peer) {
		return remote
	}

	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return remote
	}
	parts := strings.Split(forwarded, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(parts[i])
		ip := net.ParseIP(candidate)
		if ip == nil {
			return remote
		}
		if !isTrustedProxy(ip) {
			return candidate
		}
	}
	return remote
}
