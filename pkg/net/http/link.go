package http

import (
	"net/http"
	"strings"
)

const (
	RelSelf = "self"
	RelHub  = "hub"
)

// Link is a single entry of a Link header.
type Link struct {
	URL string
	Rel string
}

func (l Link) String() string {
	return "<" + l.URL + `>; rel="` + l.Rel + `"`
}

// FormatLinks joins links into a Link header value.
func FormatLinks(links ...Link) string {
	var b strings.Builder
	for i, l := range links {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(l.String())
	}
	return b.String()
}

// ParseLinks parses all Link header values. Relation lists are split,
// so `<u>; rel="self hub"` yields two links. Malformed entries are skipped.
func ParseLinks(values ...string) []Link {
	var links []Link
	for _, v := range values {
		for _, entry := range splitLinkEntries(v) {
			links = append(links, parseLinkEntry(entry)...)
		}
	}
	return links
}

// FindLink returns the URL of the first link with the relation.
func FindLink(header http.Header, rel string) (string, bool) {
	for _, l := range ParseLinks(header.Values(LinkHeaderKey)...) {
		if strings.EqualFold(l.Rel, rel) {
			return l.URL, true
		}
	}
	return "", false
}

// splitLinkEntries splits on commas outside of <...> and quoted strings.
func splitLinkEntries(v string) []string {
	var entries []string
	inURL, inQuote := false, false
	start := 0
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '<':
			if !inQuote {
				inURL = true
			}
		case '>':
			if !inQuote {
				inURL = false
			}
		case '"':
			if !inURL {
				inQuote = !inQuote
			}
		case ',':
			if !inURL && !inQuote {
				entries = append(entries, v[start:i])
				start = i + 1
			}
		}
	}
	return append(entries, v[start:])
}

func parseLinkEntry(entry string) []Link {
	entry = strings.TrimSpace(entry)
	if !strings.HasPrefix(entry, "<") {
		return nil
	}
	end := strings.Index(entry, ">")
	if end < 0 {
		return nil
	}
	url := strings.TrimSpace(entry[1:end])
	var links []Link
	for _, param := range strings.Split(entry[end+1:], ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		for _, rel := range strings.Fields(value) {
			links = append(links, Link{URL: url, Rel: strings.ToLower(rel)})
		}
	}
	return links
}
