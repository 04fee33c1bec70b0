// internal/platform/validator/validator.go
package validator

import (
	"net/url"
	"strings"
)

// Validadores de URL

// IsHTTPURL verifica que sea una URL http(s) con host.
func IsHTTPURL(s string) bool {
	u, ok := parse(s)
	if !ok {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsFeedURL acepta las fuentes de un feed: http(s) con host o file:// con
// una ruta absoluta.
func IsFeedURL(s string) bool {
	if IsHTTPURL(s) {
		return true
	}
	u, ok := parse(s)
	if !ok {
		return false
	}
	return u.Scheme == "file" && strings.HasPrefix(u.Path, "/")
}

func parse(s string) (*url.URL, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, true
}

// NormalizeURL pasa scheme y host a minúsculas y quita el puerto por defecto.
// Path y query distinguen mayúsculas y se dejan igual.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	return u.String()
}
