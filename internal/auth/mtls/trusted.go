package mtls

import (
	"fmt"
	"net/netip"
	"strings"
)

// TrustedProxies is a set of peer addresses allowed to assert certificate
// headers. The zero value trusts nothing.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies parses single IPs and CIDR blocks.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var tp TrustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return TrustedProxies{}, fmt.Errorf("invalid trusted proxy CIDR %q: %w", entry, err)
			}
			tp.prefixes = append(tp.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return TrustedProxies{}, fmt.Errorf("invalid trusted proxy address %q: %w", entry, err)
		}
		addr = addr.Unmap()
		tp.prefixes = append(tp.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return tp, nil
}

// Contains reports whether ip belongs to a trusted proxy.
func (tp TrustedProxies) Contains(ip string) bool {
	if len(tp.prefixes) == 0 || ip == "" {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range tp.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of configured entries.
func (tp TrustedProxies) Len() int {
	return len(tp.prefixes)
}
