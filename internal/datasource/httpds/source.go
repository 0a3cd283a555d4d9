package httpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Source downloads one dump URL.
type Source struct {
	url    string
	client *Client
}

// NewSource returns a source for url using a client built from cfg.
func NewSource(url string, cfg Config) *Source {
	return &Source{url: url, client: NewClient(cfg)}
}

// Open fetches the dump and returns its body. A non-200 status is an
// error. The first bytes are sniffed so that an HTML error page served
// with status 200 does not get fed to the CSV reader.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", s.url, resp.StatusCode)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	head = head[:n]
	if looksLikeHTML(head) {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: got an HTML page, not a data file", s.url)
	}

	return &replayCloser{
		Reader: io.MultiReader(bytes.NewReader(head), resp.Body),
		closer: resp.Body,
	}, nil
}

// looksLikeHTML reports whether b starts with an HTML document marker,
// ignoring leading whitespace and a UTF-8 BOM.
func looksLikeHTML(b []byte) bool {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	b = bytes.TrimLeft(b, " \t\r\n")
	lower := bytes.ToLower(b)
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}

type replayCloser struct {
	io.Reader
	closer io.Closer
}

func (r *replayCloser) Close() error { return r.closer.Close() }
