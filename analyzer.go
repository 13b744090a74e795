package lbanalyzer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLookuper builds the lookup provider selected in cfg, with cfg.Timeout
// applied to every lookup. The provider "none" yields a nil Lookuper. The
// returned closer releases whatever the provider holds open.
func NewLookuper(cfg Config, log logrus.FieldLogger) (Lookuper, io.Closer, error) {
	var (
		l      Lookuper
		closer io.Closer = nopCloser{}
	)
	switch cfg.Provider {
	case ProviderIPInfo:
		c, err := NewIPInfo(cfg.IPInfo.Token, cfg.IPInfo.BaseURL, cfg.IPInfo.Fields, &http.Client{})
		if err != nil {
			return nil, nil, err
		}
		l = c
	case ProviderWhois:
		l = NewWhois(cfg.Whois, &net.Dialer{}, log)
	case ProviderGeoIP:
		g, err := OpenGeoIP(cfg.GeoIP.CityDB, cfg.GeoIP.ASNDB)
		if err != nil {
			return nil, nil, err
		}
		l, closer = g, g
	case ProviderNone:
		return nil, closer, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.Timeout > 0 {
		l = timeoutLookuper{l: l, timeout: cfg.Timeout}
	}
	return l, closer, nil
}

type timeoutLookuper struct {
	l       Lookuper
	timeout time.Duration
}

func (t timeoutLookuper) Lookup(ctx context.Context, addr netip.Addr) (Details, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.l.Lookup(ctx, addr)
}

// Run performs one complete analysis: it tallies every file in cfg.LogDir,
// ranks and enriches the busiest addresses, writes the report to cfg.Out and
// prints the summary line to stdout. Unreadable log files and failed lookups
// are logged and skipped; listing the directory and writing the report must
// succeed.
func Run(ctx context.Context, cfg Config, log logrus.FieldLogger, stdout io.Writer) (Summary, error) {
	if log == nil {
		log = discardLogger()
	}
	ignore, err := cfg.Networks()
	if err != nil {
		return Summary{}, err
	}
	lookup, closer, err := NewLookuper(cfg, log)
	if err != nil {
		return Summary{}, err
	}
	defer closer.Close()
	return run(ctx, cfg, lookup, ignore, log, stdout)
}

func run(ctx context.Context, cfg Config, lookup Lookuper, ignore []netip.Prefix, log logrus.FieldLogger, stdout io.Writer) (Summary, error) {
	tally := NewTally(log, ignore)
	if err := tally.AddDir(cfg.LogDir); err != nil {
		return Summary{}, err
	}
	enrich, pass := Rank(tally.Counts, uint64(cfg.Threshold), cfg.Limit)
	log.WithFields(logrus.Fields{
		"unique":    tally.Unique(),
		"ranked":    len(enrich) + len(pass),
		"threshold": cfg.Threshold,
		"enrich":    len(enrich),
		"provider":  cfg.Provider,
	}).Info("ranked addresses")
	rows := NewEnricher(lookup, log).Rows(ctx, enrich, pass)
	if err := WriteReport(cfg.Out, rows, cfg.Header); err != nil {
		return Summary{}, err
	}
	log.WithFields(logrus.Fields{"out": cfg.Out, "rows": len(rows)}).Info("report written")
	summary := Summary{
		Files:       tally.Files,
		FailedFiles: len(tally.Failed),
		Lines:       tally.Lines,
		Parsed:      tally.Parsed,
		Unique:      tally.Unique(),
		Ranked:      len(enrich) + len(pass),
		Rows:        len(rows),
	}
	if err := summary.Print(stdout); err != nil {
		return summary, fmt.Errorf("printing summary: %w", err)
	}
	return summary, nil
}
