package geoip

import (
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	calls int
	code  string
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	rec := &geoip2.Country{}
	rec.Country.IsoCode = f.code
	return rec, nil
}

func (f *fakeReader) Close() error { return nil }

func TestCountryCodeCachesLookups(t *testing.T) {
	reader := &fakeReader{code: "kh"}
	r := newResolver(reader)

	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("203.0.113.7")
		if err != nil {
			t.Fatalf("CountryCode error: %v", err)
		}
		if code != "KH" {
			t.Fatalf("expected KH, got %q", code)
		}
	}
	if reader.calls != 1 {
		t.Fatalf("expected a single database lookup, got %d", reader.calls)
	}
}

func TestCountryCodeInvalidIP(t *testing.T) {
	r := newResolver(&fakeReader{})
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
}

func TestNilResolverUnavailable(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("203.0.113.7"); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if r, err := NewResolver(" "); r != nil || err != nil {
		t.Fatalf("expected nil resolver for empty path, got %v %v", r, err)
	}
}
