package lbanalyzer

import (
	"net/netip"
	"sort"
)

const (
	// DefaultThreshold is the count an address must exceed to be ranked.
	DefaultThreshold = 100
	// DefaultEnrichLimit is how many of the top addresses are looked up.
	DefaultEnrichLimit = 100
	// DefaultWhoisEnrichLimit is the enrich limit for WHOIS lookups, which
	// are slow and rate limited by the registries.
	DefaultWhoisEnrichLimit = 10
)

// Entry is an address together with its count.
type Entry struct {
	Addr  netip.Addr
	Count uint64
}

// Rank keeps the addresses seen more than threshold times, orders them by
// count, highest first, and splits them after the first limit entries. Equal
// counts are ordered by address so the output is reproducible. A limit larger
// than the number of ranked entries leaves pass empty; a limit of zero or
// less puts everything in pass.
func Rank(freq FrequencyMap, threshold uint64, limit int) (enrich, pass []Entry) {
	var ranked []Entry
	for addr, count := range freq {
		if count > threshold {
			ranked = append(ranked, Entry{Addr: addr, Count: count})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count == ranked[j].Count {
			return ranked[i].Addr.Less(ranked[j].Addr)
		}
		return ranked[i].Count > ranked[j].Count
	})
	if limit < 0 {
		limit = 0
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}
	return ranked[:limit:limit], ranked[limit:]
}
