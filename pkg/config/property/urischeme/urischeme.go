package urischeme

import (
	"fmt"
	"os"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// URIScheme is a config property holding content inline or by reference:
//   - /path/to/file
//   - file:///path/to/file (RFC 8089)
//   - data:;base64,SGVsbG8sIFdvcmxkIQ== (RFC 2397)
//   - data:,topics%3A%20%5B%5D (RFC 2397)
type URIScheme string

const (
	fileScheme = "file://"
	dataScheme = "data:"
)

// IsData reports whether the content is inline.
func (p URIScheme) IsData() bool {
	return strings.HasPrefix(string(p), dataScheme)
}

// FilePath returns the referenced file or an empty string for inline content and
// unsupported schemes.
func (p URIScheme) FilePath() string {
	v := string(p)
	switch {
	case v == "", p.IsData():
		return ""
	case strings.HasPrefix(v, fileScheme):
		return strings.TrimPrefix(v, fileScheme)
	case strings.Contains(v, "://"):
		return ""
	}
	return v
}

// IsFile reports whether the content is read from a file, such content can be watched for changes.
func (p URIScheme) IsFile() bool {
	return p.FilePath() != ""
}

// Read returns the inline content or the content of the referenced file.
func (p URIScheme) Read() ([]byte, error) {
	if p.IsData() {
		d, err := dataurl.DecodeString(string(p))
		if err != nil {
			return nil, fmt.Errorf("cannot decode data uri: %w", err)
		}
		return d.Data, nil
	}
	path := p.FilePath()
	if path == "" {
		return nil, fmt.Errorf("unsupported uri scheme('%v')", p)
	}
	return os.ReadFile(path)
}
