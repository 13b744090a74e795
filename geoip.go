package lbanalyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP looks addresses up in local MaxMind databases: a City database for
// country and city, and optionally an ASN database for the organization.
type GeoIP struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// OpenGeoIP opens the City database at cityPath and, if asnPath is not empty,
// the ASN database.
func OpenGeoIP(cityPath, asnPath string) (*GeoIP, error) {
	if cityPath == "" {
		return nil, errors.New("geoip city database path is empty")
	}
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("opening geoip city database: %w", err)
	}
	g := &GeoIP{city: city}
	if asnPath != "" {
		asn, err := geoip2.Open(asnPath)
		if err != nil {
			city.Close()
			return nil, fmt.Errorf("opening geoip asn database: %w", err)
		}
		g.asn = asn
	}
	return g, nil
}

// Lookup reads the English country and city names and, with an ASN
// database, the organization. An address missing from the databases yields
// empty details rather than an error.
func (g *GeoIP) Lookup(_ context.Context, addr netip.Addr) (Details, error) {
	ip := net.IP(addr.AsSlice())
	record, err := g.city.City(ip)
	if err != nil {
		return Details{}, err
	}
	d := Details{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
	}
	if g.asn != nil {
		asn, err := g.asn.ASN(ip)
		if err != nil {
			return Details{}, err
		}
		d.Org = asn.AutonomousSystemOrganization
		if d.Org != "" && asn.AutonomousSystemNumber != 0 {
			d.Org = fmt.Sprintf("AS%d %s", asn.AutonomousSystemNumber, d.Org)
		}
	}
	return d, nil
}

// Close releases both databases.
func (g *GeoIP) Close() error {
	err := g.city.Close()
	if g.asn != nil {
		if aerr := g.asn.Close(); err == nil {
			err = aerr
		}
	}
	return err
}
