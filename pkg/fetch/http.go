package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/stacgrab/internal/logger"
	pkgerrors "github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// HTTPOptions configure the HTTP fetch client.
type HTTPOptions struct {
	// Timeout bounds a single request including the body copy.
	// Default: 30m.
	Timeout time.Duration

	// RetryAttempts is the maximum number of attempts per asset. Default: 5.
	RetryAttempts int

	// RetryBackoff is the initial backoff between attempts. Default: 1s.
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the exponential backoff. Default: 30s.
	RetryMaxBackoff time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultHTTPOptions returns options with sensible defaults.
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:         30 * time.Minute,
		RetryAttempts:   5,
		RetryBackoff:    time.Second,
		RetryMaxBackoff: 30 * time.Second,
		UserAgent:       "stacgrab/" + "0.1.0",
	}
}

// HTTPClient fetches http(s) assets with exponential-backoff retry.
type HTTPClient struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPClient creates an HTTP fetch client. Zero option fields fall back to
// the defaults.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	defaults := DefaultHTTPOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaults.RetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = defaults.RetryMaxBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	return &HTTPClient{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Matches reports whether href is an http(s) URL.
func (c *HTTPClient) Matches(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}

// Fetch downloads href to dest, retrying transient failures with exponential
// backoff and jitter. The file is written to a temp path and renamed into
// place only on success.
func (c *HTTPClient) Fetch(ctx context.Context, href, dest string) error {
	var lastErr error
	for attempt := 0; attempt < c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.backoff(attempt)); err != nil {
				return err
			}
			logger.Debug("retrying fetch", logger.Fields{"href": href, "attempt": attempt + 1})
		}
		retryable, err := c.fetchOnce(ctx, href, dest)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return lastErr
}

func (c *HTTPClient) fetchOnce(ctx context.Context, href, dest string) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, http.NoBody)
	if err != nil {
		return false, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		// Network-level failures are worth another attempt unless the
		// context is gone.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, pkgerrors.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code %d for %s: %w", resp.StatusCode, href, pkgerrors.ErrFetchFailed)
		return retryableStatus(resp.StatusCode), err
	}

	tmpPath, err := writeBodyToTemp(resp.Body, dest)
	if err != nil {
		return true, err
	}
	if err := fsutil.Move(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return false, pkgerrors.Wrap(err, "could not finalize file")
	}
	return false, nil
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	d := c.opts.RetryBackoff << (attempt - 1)
	if d > c.opts.RetryMaxBackoff {
		d = c.opts.RetryMaxBackoff
	}
	// Full jitter keeps concurrent retries from synchronizing.
	return time.Duration(rand.Int64N(int64(d)) + int64(d)/2)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func writeBodyToTemp(body io.Reader, dest string) (string, error) {
	if err := fsutil.EnsureFileDir(dest); err != nil {
		return "", pkgerrors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "dl-*.tmp")
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not write file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, "could not close file")
	}
	return tmpPath, nil
}
