package wpauth

import (
	"net/url"
	"strings"
)

// tokenParamNames are the query/fragment parameter names searched, in order,
// when a login response hands back a URL instead of a bare token. The order
// matters: older backend generations used the later spellings.
var tokenParamNames = []string{
	"token",
	"jwt",
	"access_token",
	"auth_token",
	"bearer",
	"api_token",
}

// NormalizeToken classifies a raw token-like string from a login or refresh
// response. It returns the usable bearer token and true, or "" and false when
// the value is not a token.
//
// URL-shaped values are searched for an embedded token, first in the query
// string and then in the fragment; the first match is normalized recursively.
// A URL that yields no embedded token is rejected so the caller can store it
// as a one-time token-login URL instead. Non-URL values are returned as-is
// with any leading "Bearer " prefixes stripped.
//
// Normalization is idempotent: NormalizeToken(NormalizeToken(x)) equals
// NormalizeToken(x).
func NormalizeToken(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if u, err := url.Parse(s); err == nil && u.IsAbs() && u.Host != "" {
		if tok, ok := tokenFromValues(u.Query()); ok {
			return NormalizeToken(tok)
		}
		if frag, err := url.ParseQuery(u.Fragment); err == nil {
			if tok, ok := tokenFromValues(frag); ok {
				return NormalizeToken(tok)
			}
		}
		// URL-shaped but no embedded token: not a bearer token
		return "", false
	}

	for strings.HasPrefix(strings.ToLower(s), "bearer ") {
		s = strings.TrimSpace(s[len("bearer "):])
	}
	if s == "" {
		return "", false
	}
	return s, true
}

func tokenFromValues(values url.Values) (string, bool) {
	for _, name := range tokenParamNames {
		if v := values.Get(name); strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// IsTokenLoginURL reports whether raw is a URL that should be visited once to
// establish a cookie session, rather than used as a bearer token.
func IsTokenLoginURL(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	_, ok := NormalizeToken(s)
	return !ok
}
