package lbanalyzer

import (
	"bufio"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// serveWhois answers one connection with resp and sends the query it
// received on the returned channel.
func serveWhois(t *testing.T, resp string) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	queries := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		q, _ := bufio.NewReader(conn).ReadString('\n')
		queries <- q
		conn.Write([]byte(resp))
	}()
	return ln.Addr().String(), queries
}

func TestWhoisLookup(t *testing.T) {
	t.Parallel()
	resp, err := os.ReadFile("testdata/whois.txt")
	if err != nil {
		t.Fatal(err)
	}
	host, queries := serveWhois(t, string(resp))
	servers := WhoisServers{IP: WhoisRoute{Host: host, Query: "-B $addr\r\n"}}
	w := NewWhois(servers, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := w.Lookup(ctx, addr("203.0.113.10"))
	if err != nil {
		t.Fatal(err)
	}
	want := Details{Org: "Example Transit B.V.; Amsterdam, NL; Example Transit"}
	if !cmp.Equal(want, got) {
		t.Error(cmp.Diff(want, got))
	}
	if q := <-queries; q != "-B 203.0.113.10\r\n" {
		t.Errorf("want query %q, got %q", "-B 203.0.113.10\r\n", q)
	}
}

func TestWhoisDefaultQuery(t *testing.T) {
	t.Parallel()
	host, queries := serveWhois(t, "descr: Example\n")
	w := NewWhois(WhoisServers{IP: WhoisRoute{Host: host}}, &net.Dialer{}, nil)
	if _, err := w.Query(context.Background(), "192.0.2.1"); err != nil {
		t.Fatal(err)
	}
	if q := <-queries; q != "192.0.2.1\r\n" {
		t.Errorf("want query %q, got %q", "192.0.2.1\r\n", q)
	}
}

func TestWhoisUnreachable(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host := ln.Addr().String()
	ln.Close()
	w := NewWhois(WhoisServers{IP: WhoisRoute{Host: host}}, nil, nil)
	if _, err := w.Lookup(context.Background(), addr("192.0.2.1")); err == nil {
		t.Error("want error from closed server")
	}
}

func TestWhoisRoute(t *testing.T) {
	t.Parallel()
	servers := DefaultWhoisServers()
	tcs := []struct {
		target string
		want   WhoisRoute
	}{
		{"203.0.113.10", WhoisRoute{Host: "whois.arin.net", Query: "n + $addr\r\n"}},
		{"2001:db8::1", WhoisRoute{Host: "whois.arin.net", Query: "n + $addr\r\n"}},
		{"example.org", WhoisRoute{Host: "whois.pir.org"}},
		{"Example.ORG.", WhoisRoute{Host: "whois.pir.org"}},
		{"example.nl", WhoisRoute{Host: "whois.ripe.net"}},
		{"localhost", WhoisRoute{Host: "whois.ripe.net"}},
	}
	for _, tc := range tcs {
		got, err := servers.Route(tc.target)
		if err != nil {
			t.Errorf("%s: %v", tc.target, err)
			continue
		}
		if !cmp.Equal(tc.want, got) {
			t.Errorf("%s: %s", tc.target, cmp.Diff(tc.want, got))
		}
	}
}

func TestWhoisRouteErrors(t *testing.T) {
	t.Parallel()
	if _, err := DefaultWhoisServers().Route(" "); err == nil {
		t.Error("want error for empty target")
	}
	if _, err := (WhoisServers{}).Route("192.0.2.1"); err == nil {
		t.Error("want error without an IP server")
	}
	if _, err := (WhoisServers{}).Route("example.com"); err == nil {
		t.Error("want error without a default server")
	}
}

func TestDescriptions(t *testing.T) {
	t.Parallel()
	tcs := []struct {
		name, resp string
		want       []string
	}{
		{name: "none", resp: "inetnum: 192.0.2.0 - 192.0.2.255\n", want: nil},
		{name: "one", resp: "descr:   Example Net\n", want: []string{"Example Net"}},
		{name: "empty value", resp: "descr:\ndescr: Second\n", want: []string{"Second"}},
		{name: "colon in value", resp: "descr: Example: Backbone\n", want: []string{"Example: Backbone"}},
		{name: "crlf", resp: "descr: Windows\r\n", want: []string{"Windows"}},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Descriptions(tc.resp)
			if err != nil {
				t.Fatal(err)
			}
			if !cmp.Equal(tc.want, got) {
				t.Error(cmp.Diff(tc.want, got))
			}
		})
	}
}

func TestWhoisFollowsReferral(t *testing.T) {
	t.Parallel()
	ripe, ripeQueries := serveWhois(t, "inetnum: 203.0.113.0 - 203.0.113.255\ndescr: Example Transit B.V.\n")
	arin, arinQueries := serveWhois(t, "NetRange: 203.0.0.0 - 203.255.255.255\nReferralServer:  whois://"+ripe+"\n")
	servers := WhoisServers{
		IP:        WhoisRoute{Host: arin, Query: "n + $addr\r\n"},
		Referrals: DefaultWhoisReferrals,
	}
	got, err := NewWhois(servers, nil, nil).Lookup(context.Background(), addr("203.0.113.10"))
	if err != nil {
		t.Fatal(err)
	}
	want := Details{Org: "Example Transit B.V."}
	if !cmp.Equal(want, got) {
		t.Error(cmp.Diff(want, got))
	}
	if q := <-arinQueries; q != "n + 203.0.113.10\r\n" {
		t.Errorf("first server: want query %q, got %q", "n + 203.0.113.10\r\n", q)
	}
	if q := <-ripeQueries; q != "203.0.113.10\r\n" {
		t.Errorf("referred server: want query %q, got %q", "203.0.113.10\r\n", q)
	}
}

func TestWhoisReferralLimit(t *testing.T) {
	t.Parallel()
	host, _ := serveWhois(t, "descr: First\nrefer: whois.invalid\n")
	servers := WhoisServers{IP: WhoisRoute{Host: host}}
	got, err := NewWhois(servers, nil, nil).Lookup(context.Background(), addr("192.0.2.1"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Org != "First" {
		t.Errorf("want referral not followed and org %q, got %q", "First", got.Org)
	}
}

func TestWhoisUnreachableReferralKeepsResponse(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	gone := ln.Addr().String()
	ln.Close()
	host, _ := serveWhois(t, "descr: Registry\nReferralServer: rwhois://"+gone+"\n")
	servers := WhoisServers{IP: WhoisRoute{Host: host}, Referrals: 2}
	got, err := NewWhois(servers, nil, nil).Lookup(context.Background(), addr("192.0.2.1"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Org != "Registry" {
		t.Errorf("want org %q, got %q", "Registry", got.Org)
	}
}

func TestReferral(t *testing.T) {
	t.Parallel()
	tcs := []struct {
		name, resp string
		want       string
		wantOK     bool
	}{
		{name: "arin", resp: "NetRange: 193.0.0.0\nReferralServer:  whois://whois.ripe.net\n", want: "whois.ripe.net", wantOK: true},
		{name: "rwhois with port", resp: "ReferralServer: rwhois://rwhois.example.net:4321/\n", want: "rwhois.example.net:4321", wantOK: true},
		{name: "iana refer", resp: "% IANA WHOIS server\nrefer:        whois.apnic.net\n", want: "whois.apnic.net", wantOK: true},
		{name: "whois key", resp: "whois: whois.afrinic.net\n", want: "whois.afrinic.net", wantOK: true},
		{name: "first wins", resp: "refer: a.example\nrefer: b.example\n", want: "a.example", wantOK: true},
		{name: "none", resp: "descr: Example\nremarks: whois: not a referral\n"},
		{name: "empty value", resp: "ReferralServer:\n"},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Referral(tc.resp)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("want %q, %t, got %q, %t", tc.want, tc.wantOK, got, ok)
			}
		})
	}
}
