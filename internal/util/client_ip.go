package util

import (
	"net"
	"net/netip"
	"strings"
)

// Networks is an allowlist of address prefixes for incoming connections.
type Networks struct {
	prefixes []netip.Prefix
}

// ParseNetworks parses CIDR/IP entries into an allowlist.
// Empty input means "allow all" and returns nil.
func ParseNetworks(entries []string) (*Networks, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return &Networks{prefixes: prefixes}, nil
}

// Allows reports whether addr may connect. A nil allowlist allows everyone.
func (n *Networks) Allows(addr netip.Addr) bool {
	if n == nil {
		return true
	}
	addr = addr.Unmap()
	for _, prefix := range n.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// RemoteAddr resolves the guest identity of a connection peer: its IP
// address, with IPv4-mapped IPv6 addresses reduced to plain IPv4.
func RemoteAddr(addr net.Addr) netip.Addr {
	if addr == nil {
		return netip.Addr{}
	}
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			return netip.Addr{}
		}
		return ip.Unmap()
	}
	raw := strings.TrimSpace(addr.String())
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap()
	}
	if ip, err := netip.ParseAddr(raw); err == nil {
		return ip.Unmap()
	}
	return netip.Addr{}
}
