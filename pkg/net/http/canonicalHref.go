package http

import (
	"regexp"
	"strings"
)

var multiSlash = regexp.MustCompile(`\/+`)

// CanonicalHref always lead by "/"
func CanonicalHref(href string) string {
	p := multiSlash.ReplaceAllString(href, "/")
	p = strings.Trim(p, "/")
	return "/" + p
}

// JoinURL joins a base URL and a path without doubling slashes.
func JoinURL(base, href string) string {
	return strings.TrimRight(base, "/") + CanonicalHref(href)
}
