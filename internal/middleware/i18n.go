package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"rodinstudio/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// edgeCountryHeaders are set by CDNs and load balancers in front of the API.
var edgeCountryHeaders = []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}

// I18N picks the locale used for user-facing messages. Explicit choices win
// over the browser language, which wins over the caller's country.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)

			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback, country string) string {
	// Websocket clients cannot set headers, so the query parameter comes first.
	explicit := []string{
		r.URL.Query().Get("locale"),
		r.Header.Get("X-Locale"),
		r.Header.Get("Accept-Language"),
	}
	for _, v := range explicit {
		if v = strings.TrimSpace(v); v != "" {
			return i18n.Match(v)
		}
	}
	switch {
	case country != "":
		return i18n.LocaleForCountry(country)
	case fallback != "":
		return i18n.Match(fallback)
	default:
		return i18n.LocaleEnglish
	}
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return i18n.LocaleEnglish
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CountryKey).(string)
	return v
}

// ResolveCountry returns an upper-case ISO country code for r, or "".
// Edge headers win over the GeoIP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range edgeCountryHeaders {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}

// ClientIP returns the first valid X-Forwarded-For address, else the peer address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
