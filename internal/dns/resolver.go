// Package dns resolves domains before a proxy is created for them.
package dns

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/util"
)

// Resolver looks up the IPv4 address a domain currently points to.
type Resolver struct {
	lookupIP func(ctx context.Context, network, host string) ([]net.IP, error)
	timeout  time.Duration
}

// New returns a resolver. When server is set ("1.1.1.1:53") queries go to
// that nameserver instead of the system resolver.
func New(server string, timeout time.Duration) *Resolver {
	r := net.DefaultResolver
	if server != "" {
		r = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: timeout}
				return d.DialContext(ctx, network, server)
			},
		}
	}
	return &Resolver{lookupIP: r.LookupIP, timeout: timeout}
}

// ResolveIPv4 returns the first IPv4 address of domain, or "" when the
// lookup fails or yields no A record.
func (r *Resolver) ResolveIPv4(ctx context.Context, domain string) string {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if domain == "" {
		return ""
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ips, err := r.lookupIP(ctx, "ip4", domain)
	if err != nil {
		logger.Log().WithError(err).WithField("domain", util.SanitizeForLog(domain)).Debug("dns lookup failed")
		return ""
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
