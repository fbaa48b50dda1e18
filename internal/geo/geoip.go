package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/1sec-project/breachline/internal/core"
	"github.com/oschwald/geoip2-golang"
)

// ErrInvalidIP is returned by Lookup for unparseable addresses.
var ErrInvalidIP = errors.New("invalid ip address")

// IPLocator fills in missing sign-in geography from a MaxMind City database.
type IPLocator struct {
	reader *geoip2.Reader
}

// OpenIPLocator opens a GeoIP2/GeoLite2 City .mmdb file.
func OpenIPLocator(path string) (*IPLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening city database: %w", err)
	}
	return &IPLocator{reader: reader}, nil
}

// Lookup returns the location of ip, or nil when the database has no
// country for it.
func (l *IPLocator) Lookup(ip string) (*core.Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	record, err := l.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", ip, err)
	}
	return core.NewLocation(record.City.Names["en"], record.Country.IsoCode), nil
}

// Close releases the database.
func (l *IPLocator) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
