package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindProvider answers lookups from local GeoIP2/GeoLite2 databases.
// The ASN and Anonymous-IP databases are optional.
type MaxMindProvider struct {
	cityReader      *geoip2.Reader
	asnReader       *geoip2.Reader
	anonymousReader *geoip2.Reader
}

// NewMaxMindProvider opens the .mmdb files; empty asnPath or anonymousPath skips that database.
func NewMaxMindProvider(cityPath, asnPath, anonymousPath string) (*MaxMindProvider, error) {
	cityReader, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("open city database: %w", err)
	}
	p := &MaxMindProvider{cityReader: cityReader}

	if asnPath != "" {
		p.asnReader, err = geoip2.Open(asnPath)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open asn database: %w", err)
		}
	}
	if anonymousPath != "" {
		p.anonymousReader, err = geoip2.Open(anonymousPath)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open anonymous-ip database: %w", err)
		}
	}
	return p, nil
}

// Close releases the open database readers.
func (p *MaxMindProvider) Close() {
	for _, r := range []*geoip2.Reader{p.cityReader, p.asnReader, p.anonymousReader} {
		if r != nil {
			r.Close()
		}
	}
}

// Lookup resolves ip against the configured databases.
func (p *MaxMindProvider) Lookup(_ context.Context, ip string) (Result, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return Result{}, fmt.Errorf("invalid ip address: %q", ip)
	}

	record, err := p.cityReader.City(addr)
	if err != nil {
		return Result{}, fmt.Errorf("city lookup: %w", err)
	}

	res := fromCity(ip, record)
	if p.asnReader != nil {
		if asn, err := p.asnReader.ASN(addr); err == nil {
			applyASN(&res, asn)
		}
	}
	if p.anonymousReader != nil {
		if anon, err := p.anonymousReader.AnonymousIP(addr); err == nil {
			applyAnonymous(&res, anon)
		}
	}
	return res, nil
}

func fromCity(ip string, record *geoip2.City) Result {
	res := Result{
		IP:      ip,
		City:    record.City.Names["en"],
		Country: record.Country.Names["en"],
		Proxy:   record.Traits.IsAnonymousProxy,
	}
	if len(record.Subdivisions) > 0 {
		res.Region = record.Subdivisions[0].Names["en"]
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		lat, lon := record.Location.Latitude, record.Location.Longitude
		res.Latitude, res.Longitude = &lat, &lon
	}
	return res
}

// applyASN fills ASN and Org; a zero AS number means the database had no entry.
func applyASN(res *Result, asn *geoip2.ASN) {
	if asn.AutonomousSystemNumber == 0 {
		return
	}
	number := fmt.Sprintf("AS%d", asn.AutonomousSystemNumber)
	res.ASN = &number
	res.Org = asn.AutonomousSystemOrganization
}

func applyAnonymous(res *Result, anon *geoip2.AnonymousIP) {
	res.Proxy = res.Proxy || anon.IsPublicProxy
	res.VPN = anon.IsAnonymousVPN
	res.Tor = anon.IsTorExitNode
}
