package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSourceOpen(t *testing.T) {
	const dump = "pickup,dropoff\n2024-01-01 08:00:00,2024-01-01 08:10:00\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, dump)
	}))
	defer srv.Close()

	rc, err := NewSource(srv.URL, fastConfig()).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != dump {
		t.Errorf("read %q, want %q", got, dump)
	}
}

func TestSourceOpenLargeBody(t *testing.T) {
	// Body longer than the sniff window must come back intact.
	dump := "id,n\n" + strings.Repeat("1,2\n", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, dump)
	}))
	defer srv.Close()

	rc, err := NewSource(srv.URL, fastConfig()).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if string(got) != dump {
		t.Errorf("read %d bytes, want %d", len(got), len(dump))
	}
}

func TestSourceOpenRejectsHTML(t *testing.T) {
	pages := []string{
		"<html><body>moved</body></html>",
		"\n  <!DOCTYPE html><html></html>",
		"\xef\xbb\xbf<HTML>",
	}
	for _, page := range pages {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, page)
		}))
		if _, err := NewSource(srv.URL, fastConfig()).Open(context.Background()); err == nil {
			t.Errorf("Open accepted HTML body %q", page)
		}
		srv.Close()
	}
}

func TestSourceOpenBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewSource(srv.URL, fastConfig()).Open(context.Background()); err == nil {
		t.Fatal("Open accepted a 404 response")
	}
}

func TestSourceOpenEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	rc, err := NewSource(srv.URL, fastConfig()).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if len(got) != 0 {
		t.Errorf("read %q from empty body", got)
	}
}
