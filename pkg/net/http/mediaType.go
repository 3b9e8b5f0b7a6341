package http

import (
	"mime"
	"strings"
)

// MediaType returns the lowercased media type without parameters.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// SameMediaType compares content types ignoring their parameters.
func SameMediaType(a, b string) bool {
	return MediaType(a) == MediaType(b)
}
