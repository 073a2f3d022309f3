package projects

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
)

// ErrMissingKey means no DSN public key could be found on the request.
var ErrMissingKey = errors.New("missing DSN public key")

var keyPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// KeyFromRequest extracts the DSN public key from a submission request.
// SDKs send it as a query parameter, as an X-Sentry-Auth header, or as an
// Authorization header of the form "Sentry sentry_key=<hex>, ...".
func KeyFromRequest(r *http.Request) (string, error) {
	query := r.URL.Query()
	for _, param := range []string{"sentry_key", "crashgate_key", "key"} {
		if key := query.Get(param); key != "" {
			return validateKey(key)
		}
	}

	for _, header := range []string{"X-Sentry-Auth", "Authorization"} {
		if key := keyFromAuthHeader(r.Header.Get(header)); key != "" {
			return validateKey(key)
		}
	}

	return "", ErrMissingKey
}

// keyFromAuthHeader parses "Sentry sentry_key=abc, sentry_version=7" style
// headers and returns the key value, or "" when absent.
func keyFromAuthHeader(value string) string {
	if value == "" {
		return ""
	}
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "Sentry ")
	if !ok {
		return ""
	}

	for _, pair := range strings.Split(rest, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		if k == "sentry_key" || k == "crashgate_key" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func validateKey(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", ErrInvalidKey
	}
	return strings.ToLower(key), nil
}
