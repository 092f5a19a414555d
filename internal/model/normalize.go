package model

import (
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes an entity or person name for identity
// comparison: NFKC form, lower case, interior whitespace collapsed.
// "Liberty  First PAC" and "liberty first pac" normalize equal.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeURL canonicalizes a URL for dedupe: scheme and host lowered,
// default ports and fragments dropped, trailing slash trimmed. Invalid
// URLs normalize to their trimmed input so they still dedupe exactly.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
