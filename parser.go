package lbanalyzer

import (
	"net/netip"
	"strings"
	"unicode/utf8"
)

// AddrField is the zero-based index of the whitespace-separated field that
// holds the client "ip:port" in an access-log line.
const AddrField = 3

// ParseLine extracts the client IPv4 address from one access-log line. It
// reports false for lines with too few fields, a malformed address, an IPv6
// address, or bytes that are not valid UTF-8.
func ParseLine(line string) (netip.Addr, bool) {
	if !utf8.ValidString(line) {
		return netip.Addr{}, false
	}
	fields := strings.Fields(line)
	if len(fields) <= AddrField {
		return netip.Addr{}, false
	}
	host, _, _ := strings.Cut(fields[AddrField], ":")
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}
