package lbanalyzer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"
	"mvdan.cc/sh/v3/shell"
)

const (
	whoisPort = "43"
	// defaultWhoisQuery is sent when a route has no query template.
	defaultWhoisQuery = "$addr\r\n"
	// DefaultWhoisReferrals is how many referrals a lookup follows.
	DefaultWhoisReferrals = 2
)

// WhoisRoute names a WHOIS server and the query sent to it. Query is
// expanded like a double-quoted shell word with $addr bound to the lookup
// target.
type WhoisRoute struct {
	Host  string `mapstructure:"host"`
	Query string `mapstructure:"query"`
}

// WhoisServers routes lookups to registry servers: domains by top-level
// domain, falling back to Default, and IP addresses to IP. A response that
// refers to another server is followed up to Referrals times.
type WhoisServers struct {
	Default   string            `mapstructure:"default"`
	Domains   map[string]string `mapstructure:"domains"`
	IP        WhoisRoute        `mapstructure:"ip"`
	Referrals int               `mapstructure:"referrals"`
}

// DefaultWhoisServers returns the built-in routing table. IP addresses go to
// ARIN with its "n +" network query.
func DefaultWhoisServers() WhoisServers {
	return WhoisServers{
		Default: "whois.ripe.net",
		Domains: map[string]string{
			"org": "whois.pir.org",
		},
		IP: WhoisRoute{
			Host:  "whois.arin.net",
			Query: "n + $addr\r\n",
		},
		Referrals: DefaultWhoisReferrals,
	}
}

// Route picks the server for target, which is an IP address or a domain
// name.
func (s WhoisServers) Route(target string) (WhoisRoute, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return WhoisRoute{}, fmt.Errorf("empty whois target")
	}
	if _, err := netip.ParseAddr(target); err == nil {
		if s.IP.Host == "" {
			return WhoisRoute{}, fmt.Errorf("no whois server for IP addresses")
		}
		return s.IP, nil
	}
	name := strings.ToLower(strings.TrimSuffix(target, "."))
	tld := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		tld = name[i+1:]
	}
	if host, ok := s.Domains[tld]; ok && host != "" {
		return WhoisRoute{Host: host}, nil
	}
	if s.Default == "" {
		return WhoisRoute{}, fmt.Errorf("no whois server for %q", target)
	}
	return WhoisRoute{Host: s.Default}, nil
}

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Whois looks addresses up in the WHOIS registries and reports their
// "descr:" lines as the organization.
type Whois struct {
	servers WhoisServers
	dialer  Dialer
	log     logrus.FieldLogger
}

// NewWhois returns a WHOIS client. A nil dialer means a plain *net.Dialer.
func NewWhois(servers WhoisServers, dialer Dialer, log logrus.FieldLogger) *Whois {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if log == nil {
		log = discardLogger()
	}
	return &Whois{servers: servers, dialer: dialer, log: log}
}

// Query sends the routed query for target and returns the raw response. A
// "ReferralServer:", "refer:" or "whois:" line in the response sends the
// query on to that server, at most Referrals times; the last response wins.
// A referral that cannot be reached is logged and the previous response is
// kept. The context's deadline, if any, bounds every exchange.
func (w *Whois) Query(ctx context.Context, target string) (string, error) {
	route, err := w.servers.Route(target)
	if err != nil {
		return "", err
	}
	resp, err := w.exchange(ctx, route, target)
	if err != nil {
		return "", err
	}
	seen := map[string]bool{whoisAddress(route.Host): true}
	for hop := 0; hop < w.servers.Referrals; hop++ {
		host, ok := Referral(resp)
		if !ok || seen[whoisAddress(host)] {
			break
		}
		seen[whoisAddress(host)] = true
		next := WhoisRoute{Host: host}
		if whoisAddress(host) == whoisAddress(w.servers.IP.Host) {
			next.Query = w.servers.IP.Query
		}
		referred, err := w.exchange(ctx, next, target)
		if err != nil {
			w.log.WithFields(logrus.Fields{"target": target, "server": host}).
				WithError(err).Warn("whois referral failed")
			break
		}
		resp = referred
	}
	return resp, nil
}

// exchange sends one query to route's server and reads the whole response.
func (w *Whois) exchange(ctx context.Context, route WhoisRoute, target string) (string, error) {
	tmpl := route.Query
	if tmpl == "" {
		tmpl = defaultWhoisQuery
	}
	query, err := shell.Expand(tmpl, func(name string) string {
		if name == "addr" {
			return target
		}
		return ""
	})
	if err != nil {
		return "", fmt.Errorf("expanding whois query %q: %w", tmpl, err)
	}
	address := whoisAddress(route.Host)
	conn, err := w.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := io.WriteString(conn, query); err != nil {
		return "", fmt.Errorf("sending whois query to %s: %w", address, err)
	}
	resp, err := io.ReadAll(io.LimitReader(conn, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading whois response from %s: %w", address, err)
	}
	return string(resp), nil
}

// whoisAddress adds the WHOIS port to host unless it names one.
func whoisAddress(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, whoisPort)
}

// Lookup queries the registry for addr. The "descr:" values are joined into
// Org; the other fields stay empty.
func (w *Whois) Lookup(ctx context.Context, addr netip.Addr) (Details, error) {
	resp, err := w.Query(ctx, addr.String())
	if err != nil {
		return Details{}, err
	}
	descr, err := Descriptions(resp)
	if err != nil {
		return Details{}, err
	}
	for _, d := range descr {
		w.log.WithFields(logrus.Fields{"addr": addr, "descr": d}).Info("whois description")
	}
	return Details{Org: strings.Join(descr, "; ")}, nil
}

// Descriptions returns the value of every line in a WHOIS response that
// contains a "descr:" label.
func Descriptions(resp string) ([]string, error) {
	var descr []string
	p := Echo(resp).Match("descr:").EachLine(func(line string, _ *strings.Builder) {
		_, value, _ := strings.Cut(line, ":")
		if value = strings.TrimSpace(value); value != "" {
			descr = append(descr, value)
		}
	})
	return descr, p.Error()
}

var referralKeys = map[string]bool{
	"referralserver": true,
	"refer":          true,
	"whois":          true,
}

// Referral returns the server named by the first referral line of a WHOIS
// response, without any whois:// or rwhois:// scheme.
func Referral(resp string) (string, bool) {
	var host string
	Echo(resp).EachLine(func(line string, _ *strings.Builder) {
		if host != "" {
			return
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || !referralKeys[strings.ToLower(strings.TrimSpace(key))] {
			return
		}
		value = strings.TrimSpace(value)
		if _, rest, ok := strings.Cut(value, "://"); ok {
			value = rest
		}
		host = strings.TrimRight(value, "/")
	})
	return host, host != ""
}
