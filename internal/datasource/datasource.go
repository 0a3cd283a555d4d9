// Package datasource abstracts where a trip or zone dump is read from.
// Monthly dumps are published for download over HTTPS, but most runs work
// from files already on disk; New picks the backend from the path.
package datasource

import (
	"context"
	"io"
	"strings"

	"mobility/internal/datasource/file"
	"mobility/internal/datasource/httpds"
)

// Source yields a byte stream for one dump.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// New returns a source for path. http:// and https:// paths download the
// dump; anything else is treated as a local file.
func New(path string) Source {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return httpds.NewSource(path, httpds.Config{})
	}
	return file.NewLocal(path)
}
