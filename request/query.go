package request

import (
	"net/url"
	"strings"
)

// ParseQuery splits a raw query string into a flat map. The last value wins
// for repeated keys; pairs that fail to unescape keep their raw text.
func ParseQuery(raw string) map[string]string {
	out := make(map[string]string)
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[unescape(k)] = unescape(v)
	}
	return out
}

func unescape(s string) string {
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}
