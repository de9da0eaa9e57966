package internal

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharedlm/sharedlm/testutil"
)

func newTestDownloader() *Downloader {
	d := NewDownloader()
	// Test payloads are tiny; the production size floor would reject them.
	d.minSize = 8
	return d
}

func assertNoPartial(t *testing.T, dest string) {
	t.Helper()
	if _, err := os.Stat(dest + ".partial"); !os.IsNotExist(err) {
		t.Errorf("partial file left behind at %s.partial", dest)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination file left behind at %s", dest)
	}
}

func TestDownloader_Download(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.HandleFunc(http.MethodGet, "/artifact", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("binary-artifact-content"))
	})

	dest := filepath.Join(testutil.CreateTempDir(t), "artifact.bin")
	d := newTestDownloader()

	if err := d.Download(context.Background(), backend.URL()+"/artifact", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "binary-artifact-content" {
		t.Errorf("downloaded content = %q, want %q", data, "binary-artifact-content")
	}
	if _, err := os.Stat(dest + ".partial"); !os.IsNotExist(err) {
		t.Error("partial file not renamed away after success")
	}
}

func TestDownloader_FollowsRedirects(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.HandleFunc(http.MethodGet, "/a", func(w http.ResponseWriter, r *http.Request) {
		// Relative target resolves against the origin.
		w.Header().Set("Location", "/b")
		w.WriteHeader(http.StatusFound)
	})
	backend.HandleFunc(http.MethodGet, "/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/final")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	backend.HandleFunc(http.MethodGet, "/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("redirected-payload"))
	})

	dest := filepath.Join(testutil.CreateTempDir(t), "artifact.bin")
	d := newTestDownloader()

	if err := d.Download(context.Background(), backend.URL()+"/a", dest); err != nil {
		t.Fatalf("Download() through redirects error = %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "redirected-payload" {
		t.Errorf("downloaded content = %q, want %q", data, "redirected-payload")
	}
}

func TestDownloader_TooManyRedirects(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.HandleFunc(http.MethodGet, "/loop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/loop")
		w.WriteHeader(http.StatusFound)
	})

	dest := filepath.Join(testutil.CreateTempDir(t), "artifact.bin")
	d := newTestDownloader()

	err := d.Download(context.Background(), backend.URL()+"/loop", dest)
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Download() error = %v, want DownloadError", err)
	}
	if dlErr.Timeout {
		t.Error("redirect loop reported as timeout")
	}
	assertNoPartial(t, dest)
}

func TestDownloader_NotFound(t *testing.T) {
	backend := testutil.NewBackend(t)

	dest := filepath.Join(testutil.CreateTempDir(t), "artifact.bin")
	d := newTestDownloader()

	err := d.Download(context.Background(), backend.URL()+"/missing", dest)
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Download() error = %v, want DownloadError", err)
	}
	assertNoPartial(t, dest)
}

func TestDownloader_RejectsTruncatedArtifact(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.HandleFunc(http.MethodGet, "/tiny", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	})

	dest := filepath.Join(testutil.CreateTempDir(t), "artifact.bin")
	d := newTestDownloader()

	err := d.Download(context.Background(), backend.URL()+"/tiny", dest)
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Download() of tiny body error = %v, want DownloadError", err)
	}
	assertNoPartial(t, dest)
}

func TestDownloader_Timeout(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.HandleFunc(http.MethodGet, "/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	dest := filepath.Join(testutil.CreateTempDir(t), "artifact.bin")
	d := newTestDownloader()

	err := d.Download(ctx, backend.URL()+"/slow", dest)
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Download() error = %v, want DownloadError", err)
	}
	if !dlErr.Timeout {
		t.Errorf("Download() deadline error not marked as timeout: %v", dlErr)
	}
	assertNoPartial(t, dest)
}

func TestDownloader_InvalidURL(t *testing.T) {
	d := newTestDownloader()
	err := d.Download(context.Background(), "://bad", "/tmp/never")
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Download() with invalid URL error = %v, want DownloadError", err)
	}
}
