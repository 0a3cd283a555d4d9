// Package file reads dumps from the local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens a dump from a local path.
type Local struct{ path string }

// NewLocal returns a source bound to path. The file is not touched until
// Open is called.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the file for reading. Errors keep the path and stay
// errors.Is-checkable against os.ErrNotExist and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
