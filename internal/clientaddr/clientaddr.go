// Package clientaddr resolves the originating client address of an ingest
// request and applies per-project anonymization policy before anything is
// persisted or queued.
package clientaddr

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Resolver extracts the originating network address from request metadata.
// Forwarding headers are only consulted when the direct peer is a configured
// trusted proxy; a client-supplied X-Forwarded-For from an untrusted peer is
// ignored.
type Resolver struct {
	trustedProxies []netip.Prefix
}

// NewResolver builds a resolver from trusted proxy CIDRs. Invalid entries
// are reported rather than silently dropped since a typo here changes the
// trust boundary.
func NewResolver(trustedCIDRs []string) (*Resolver, error) {
	prefixes := make([]netip.Prefix, 0, len(trustedCIDRs))
	for _, cidr := range trustedCIDRs {
		// Accept bare addresses as /32 (/128) for convenience.
		if !strings.Contains(cidr, "/") {
			addr, err := netip.ParseAddr(cidr)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix)
	}
	return &Resolver{trustedProxies: prefixes}, nil
}

// Resolve returns the originating address of the request and whether it is
// publicly routable. The zero Addr is returned when no address could be
// parsed. Callers must not persist addresses that are not publicly routable.
func (r *Resolver) Resolve(req *http.Request) (addr netip.Addr, routable bool) {
	peer := parseHostAddr(req.RemoteAddr)

	addr = peer
	if peer.IsValid() && r.isTrustedProxy(peer) {
		if fromHeader := r.resolveForwarded(req); fromHeader.IsValid() {
			addr = fromHeader
		}
	}

	if !addr.IsValid() {
		return netip.Addr{}, false
	}
	return addr, isPubliclyRoutable(addr)
}

// resolveForwarded walks X-Forwarded-For right to left, skipping trusted
// proxy hops, and returns the first external address. Falls back to
// X-Real-IP when the forwarded chain is empty or fully trusted.
func (r *Resolver) resolveForwarded(req *http.Request) netip.Addr {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := parseHostAddr(strings.TrimSpace(hops[i]))
			if !hop.IsValid() {
				continue
			}
			if !r.isTrustedProxy(hop) {
				return hop
			}
		}
	}
	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return parseHostAddr(strings.TrimSpace(xri))
	}
	return netip.Addr{}
}

func (r *Resolver) isTrustedProxy(addr netip.Addr) bool {
	for _, prefix := range r.trustedProxies {
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// parseHostAddr parses an address that may carry a port.
func parseHostAddr(s string) netip.Addr {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// isPubliclyRoutable reports whether the address belongs to public address
// space. Loopback, private, link-local, multicast, and unspecified ranges
// are all excluded.
func isPubliclyRoutable(addr netip.Addr) bool {
	switch {
	case addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified():
		return false
	}
	return true
}

// Anonymize masks the host portion of an address: the last octet of an IPv4
// address or the trailing 80 bits of an IPv6 address are zeroed. Called
// inside the ingest boundary whenever the owning project's policy requires
// IP scrubbing; downstream storage never sees the raw address.
func Anonymize(addr netip.Addr) netip.Addr {
	if addr.Is4() || addr.Is4In6() {
		b := addr.Unmap().As4()
		b[3] = 0
		return netip.AddrFrom4(b)
	}
	b := addr.As16()
	for i := 6; i < 16; i++ {
		b[i] = 0
	}
	return netip.AddrFrom16(b)
}
