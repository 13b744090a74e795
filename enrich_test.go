package lbanalyzer

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeLookuper struct {
	details map[netip.Addr]Details
	calls   []netip.Addr
}

func (f *fakeLookuper) Lookup(_ context.Context, a netip.Addr) (Details, error) {
	f.calls = append(f.calls, a)
	d, ok := f.details[a]
	if !ok {
		return Details{}, errors.New("lookup service unavailable")
	}
	return d, nil
}

func TestRowRecord(t *testing.T) {
	t.Parallel()
	tcs := []struct {
		name string
		row  Row
		want []string
	}{
		{
			name: "full",
			row: Row{Addr: addr("203.0.113.10"), Count: 1234, Details: Details{
				Country: "Netherlands", City: "Amsterdam", Hostname: "host.example.net", Org: "AS64500 Example, Inc.",
			}},
			want: []string{"203.0.113.10", "1234", "Netherlands", "Amsterdam", "host.example.net", "AS64500 Example, Inc."},
		},
		{
			name: "empty details",
			row:  Row{Addr: addr("192.0.2.1"), Count: 101},
			want: []string{"192.0.2.1", "101", "-", "-", "-", "-"},
		},
		{
			name: "blank fields",
			row:  Row{Addr: addr("192.0.2.1"), Count: 101, Details: Details{Country: "DE", City: "  "}},
			want: []string{"192.0.2.1", "101", "DE", "-", "-", "-"},
		},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.row.Record()
			if !cmp.Equal(tc.want, got) {
				t.Error(cmp.Diff(tc.want, got))
			}
		})
	}
}

func TestEnricherRows(t *testing.T) {
	t.Parallel()
	lookup := &fakeLookuper{details: map[netip.Addr]Details{
		addr("192.0.2.1"): {Country: "United States", Org: "Example Org"},
	}}
	enrich := []Entry{{addr("192.0.2.1"), 900}, {addr("192.0.2.2"), 800}}
	pass := []Entry{{addr("192.0.2.3"), 700}}
	rows := NewEnricher(lookup, nil).Rows(context.Background(), enrich, pass)
	want := []Row{
		{Addr: addr("192.0.2.1"), Count: 900, Details: Details{Country: "United States", Org: "Example Org"}},
		{Addr: addr("192.0.2.2"), Count: 800},
		{Addr: addr("192.0.2.3"), Count: 700},
	}
	if !cmp.Equal(want, rows, addrComparer) {
		t.Error(cmp.Diff(want, rows, addrComparer))
	}
	wantCalls := []netip.Addr{addr("192.0.2.1"), addr("192.0.2.2")}
	if !cmp.Equal(wantCalls, lookup.calls, addrComparer) {
		t.Errorf("lookups: %s", cmp.Diff(wantCalls, lookup.calls, addrComparer))
	}
}

func TestEnricherWithoutLookuper(t *testing.T) {
	t.Parallel()
	rows := NewEnricher(nil, nil).Rows(context.Background(),
		[]Entry{{addr("192.0.2.1"), 200}}, []Entry{{addr("192.0.2.2"), 150}})
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Details != (Details{}) {
			t.Errorf("%v: want empty details, got %+v", r.Addr, r.Details)
		}
	}
}
