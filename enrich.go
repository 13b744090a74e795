package lbanalyzer

import (
	"context"
	"net/netip"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Placeholder fills every enrichment field that has no value.
const Placeholder = "-"

// Details holds what a lookup learned about an address. Empty fields are
// unknown.
type Details struct {
	Country  string
	City     string
	Hostname string
	Org      string
}

// Lookuper resolves details for a single address.
type Lookuper interface {
	Lookup(ctx context.Context, addr netip.Addr) (Details, error)
}

// Row is one line of the report.
type Row struct {
	Addr  netip.Addr
	Count uint64
	Details
}

// Record returns the row as CSV fields: address, count, country, city,
// hostname, org. Missing fields become Placeholder.
func (r Row) Record() []string {
	return []string{
		r.Addr.String(),
		strconv.FormatUint(r.Count, 10),
		orPlaceholder(r.Country),
		orPlaceholder(r.City),
		orPlaceholder(r.Hostname),
		orPlaceholder(r.Org),
	}
}

func orPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Placeholder
	}
	return s
}

// Enricher turns ranked entries into report rows.
type Enricher struct {
	lookup Lookuper
	log    logrus.FieldLogger
}

// NewEnricher returns an enricher using l. A nil l performs no lookups and
// every row gets placeholders.
func NewEnricher(l Lookuper, log logrus.FieldLogger) *Enricher {
	if log == nil {
		log = discardLogger()
	}
	return &Enricher{lookup: l, log: log}
}

// Rows looks up each entry of enrich in order, one at a time, and returns a
// row for every entry of enrich followed by a row for every entry of pass. A
// failed lookup is logged and yields a placeholder row.
func (e *Enricher) Rows(ctx context.Context, enrich, pass []Entry) []Row {
	rows := make([]Row, 0, len(enrich)+len(pass))
	var enriched, failed int
	for _, entry := range enrich {
		row := Row{Addr: entry.Addr, Count: entry.Count}
		if e.lookup != nil {
			details, err := e.lookup.Lookup(ctx, entry.Addr)
			if err != nil {
				failed++
				e.log.WithFields(logrus.Fields{
					"addr":  entry.Addr,
					"count": entry.Count,
				}).WithError(err).Warn("lookup failed")
			} else {
				enriched++
				row.Details = details
			}
		}
		rows = append(rows, row)
	}
	for _, entry := range pass {
		rows = append(rows, Row{Addr: entry.Addr, Count: entry.Count})
	}
	e.log.WithFields(logrus.Fields{
		"enriched": enriched,
		"failed":   failed,
		"passed":   len(pass),
	}).Info("enrichment finished")
	return rows
}
