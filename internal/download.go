package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	// maxRedirects bounds redirect-following to prevent loops.
	maxRedirects = 5

	// downloadTimeout is the stall timeout for large binary downloads.
	downloadTimeout = 5 * time.Minute

	// minDownloadBytes is a cheap sanity check against truncated or
	// HTML-error-page downloads masquerading as a binary.
	minDownloadBytes = 1024 * 1024
)

// Downloader fetches release artifacts, following redirects manually so hop
// count and partial-file cleanup stay under our control.
type Downloader struct {
	client  *http.Client
	minSize int64
}

// NewDownloader creates a downloader with the standard limits.
func NewDownloader() *Downloader {
	return &Downloader{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		minSize: minDownloadBytes,
	}
}

// Download streams the artifact at rawURL to dest. The body is written to a
// .partial file and renamed into place only after a clean EOF and size
// check; every failure path removes the partial file.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	current, err := url.Parse(rawURL)
	if err != nil {
		return &DownloadError{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	partial := dest + ".partial"

	for hop := 0; ; hop++ {
		if hop > maxRedirects {
			os.Remove(partial)
			return &DownloadError{URL: rawURL, Err: fmt.Errorf("too many redirects (%d)", hop)}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return &DownloadError{URL: rawURL, Err: err}
		}

		resp, err := d.client.Do(req)
		if err != nil {
			os.Remove(partial)
			if errors.Is(err, context.DeadlineExceeded) {
				return &DownloadError{URL: rawURL, Timeout: true, Err: err}
			}
			return &DownloadError{URL: rawURL, Err: err}
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()
			os.Remove(partial)
			if location == "" {
				return &DownloadError{URL: rawURL, Err: fmt.Errorf("redirect without Location header (status %d)", resp.StatusCode)}
			}
			next, err := url.Parse(location)
			if err != nil {
				return &DownloadError{URL: rawURL, Err: fmt.Errorf("invalid redirect target: %w", err)}
			}
			// Relative redirects resolve against the original origin.
			current = current.ResolveReference(next)
			LogDebug("following redirect %d to %s", hop+1, current)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			os.Remove(partial)
			return &DownloadError{URL: rawURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}

		err = d.writeBody(resp.Body, partial)
		resp.Body.Close()
		if err != nil {
			os.Remove(partial)
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return &DownloadError{URL: rawURL, Timeout: true, Err: err}
			}
			return &DownloadError{URL: rawURL, Err: err}
		}

		info, err := os.Stat(partial)
		if err != nil {
			os.Remove(partial)
			return &DownloadError{URL: rawURL, Err: err}
		}
		if info.Size() < d.minSize {
			os.Remove(partial)
			return &DownloadError{URL: rawURL, Err: fmt.Errorf("artifact implausibly small (%d bytes)", info.Size())}
		}

		if err := os.Rename(partial, dest); err != nil {
			os.Remove(partial)
			return &DownloadError{URL: rawURL, Err: err}
		}
		return nil
	}
}

func (d *Downloader) writeBody(body io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
