package lbanalyzer

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/thcyron/cidrmerge"
)

// ParseNetworks parses CIDR strings and merges overlapping or adjacent
// networks. A bare address is taken as a single-host network. Blank entries
// are ignored.
func ParseNetworks(cidrs []string) ([]netip.Prefix, error) {
	var v4, v6 []*net.IPNet
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid network %q: %w", raw, err)
			}
			raw = netip.PrefixFrom(addr, addr.BitLen()).String()
		}
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", raw, err)
		}
		if network.IP.To4() != nil {
			v4 = append(v4, network)
		} else {
			v6 = append(v6, network)
		}
	}
	var merged []netip.Prefix
	for _, group := range [][]*net.IPNet{v4, v6} {
		if len(group) == 0 {
			continue
		}
		for _, network := range cidrmerge.Merge(group) {
			prefix, err := netip.ParsePrefix(network.String())
			if err != nil {
				return nil, fmt.Errorf("merging networks: %w", err)
			}
			merged = append(merged, prefix)
		}
	}
	return merged, nil
}

func containsAddr(networks []netip.Prefix, addr netip.Addr) bool {
	for _, n := range networks {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}
