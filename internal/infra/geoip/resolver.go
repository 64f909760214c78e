package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const cacheSize = 4096

// CountryResolver resolves ISO country codes from IP addresses.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Resolver answers country lookups from a MaxMind database, memoizing recent IPs.
type Resolver struct {
	reader countryReader
	cache  *lru.Cache[string, string]
}

// NewResolver opens the GeoIP database at path. An empty path yields a nil resolver.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return newResolver(reader), nil
}

func newResolver(reader countryReader) *Resolver {
	cache, _ := lru.New[string, string](cacheSize)
	return &Resolver{reader: reader, cache: cache}
}

// CountryCode returns the ISO country code for ip, or "" when unknown.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	if code, ok := r.cache.Get(ip); ok {
		return code, nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	code := ""
	if record != nil {
		code = strings.ToUpper(record.Country.IsoCode)
	}
	r.cache.Add(ip, code)
	return code, nil
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
