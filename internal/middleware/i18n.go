package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

// Locales served by the assistant replies, first is the default.
var supportedLocales = []language.Tag{language.English, language.Indonesian}

var localeMatcher = language.NewMatcher(supportedLocales)

// countryHeaders are set by the CDN or load balancer in front of the API.
var countryHeaders = []string{"CF-IPCountry", "X-Country-Code", "X-Appengine-Country"}

// CountryLookup resolves an ISO country code for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the request locale and, when known, the client country in
// the request context. Locale precedence: ?locale, X-Locale,
// Accept-Language, country, then fallback.
func I18N(fallback string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback = matchLocale(fallback)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := requestCountry(r, lookup)
			ctx := context.WithValue(r.Context(), localeContextKey{}, requestLocale(r, country, fallback))
			if country != "" {
				ctx = context.WithValue(ctx, countryContextKey{}, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLocale(r *http.Request, country, fallback string) string {
	for _, explicit := range []string{r.URL.Query().Get("locale"), r.Header.Get("X-Locale")} {
		if strings.TrimSpace(explicit) != "" {
			return matchLocale(explicit)
		}
	}
	if accept := r.Header.Get("Accept-Language"); strings.TrimSpace(accept) != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return matchLocale(tags[0].String())
		}
	}
	switch {
	case country == "ID":
		return "id"
	case country != "":
		return "en"
	case fallback != "":
		return fallback
	}
	return "en"
}

// matchLocale maps any BCP 47 tag onto a served locale.
func matchLocale(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	_, idx, _ := localeMatcher.Match(language.Make(raw))
	base, _ := supportedLocales[idx].Base()
	return base.String()
}

// requestCountry prefers proxy headers and falls back to the GeoIP lookup.
// A lookup failure leaves the country unknown.
func requestCountry(r *http.Request, lookup CountryLookup) string {
	for _, h := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); len(v) == 2 && !strings.EqualFold(v, "XX") {
			return strings.ToUpper(v)
		}
	}
	if lookup == nil {
		return ""
	}
	country, err := lookup(clientIP(r))
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(country))
}

// LocaleFromContext returns the locale I18N chose, "en" outside a request.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeContextKey{}).(string); ok {
		return v
	}
	return "en"
}

func CountryFromContext(ctx context.Context) string {
	v, _ := ctx.Value(countryContextKey{}).(string)
	return v
}
