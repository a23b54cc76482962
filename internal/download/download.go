// Package download fetches model files over HTTP with checksum verification.
package download

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	defaultRetries   = 3
	defaultUserAgent = "speechbridge/1"
	retryStep        = 300 * time.Millisecond
	downloadTimeout  = 10 * time.Minute
	checksumTimeout  = 2 * time.Minute
)

// StatusError reports a non-200 response. Client errors are not retried.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	ChecksumURL    string
	Retries        int
	NoProgress     bool
	Description    string
	UserAgent      string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

func (o *Options) defaults() {
	if o.Retries <= 0 {
		o.Retries = defaultRetries
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: downloadTimeout}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Description == "" {
		o.Description = "downloading " + filepath.Base(o.Destination)
	}
}

// DownloadFile writes URL to Destination through a .part file that is only
// renamed into place once the body is complete and its checksum matches.
func DownloadFile(ctx context.Context, opts Options) error {
	switch {
	case opts.URL == "":
		return errors.New("download URL is required")
	case opts.Destination == "":
		return errors.New("destination path is required")
	}
	opts.defaults()

	expected := normalizeChecksum(opts.ExpectedSHA256)
	if expected == "" && opts.ChecksumURL != "" {
		resolved, err := ResolveExpectedChecksum(ctx, opts.ChecksumURL, filepath.Base(opts.Destination), opts.HTTPClient)
		if err != nil {
			return fmt.Errorf("fetch checksum: %w", err)
		}
		expected = resolved
	}

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	log := opts.Logger.With(zap.String("url", opts.URL))
	var err error
	for attempt := 1; ; attempt++ {
		if err = fetchTo(ctx, opts, expected); err == nil {
			log.Debug("download complete", zap.String("destination", opts.Destination))
			return nil
		}
		if attempt == opts.Retries || !shouldRetry(ctx, err) {
			return err
		}

		log.Warn("retrying download", zap.Int("attempt", attempt+1), zap.Int("max", opts.Retries), zap.Error(err))
		if werr := sleepContext(ctx, time.Duration(attempt)*retryStep); werr != nil {
			return werr
		}
	}
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// get issues a GET and returns the response only for 200 OK.
func get(ctx context.Context, client *http.Client, url, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// fetchTo performs one download attempt. The .part file is removed unless
// the attempt succeeds.
func fetchTo(ctx context.Context, opts Options, expected string) (err error) {
	partPath := opts.Destination + ".part"
	_ = os.Remove(partPath)

	part, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = part.Close()
		if err != nil {
			_ = os.Remove(partPath)
		}
	}()

	resp, err := get(ctx, opts.HTTPClient, opts.URL, opts.UserAgent)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	hash := sha256.New()
	sinks := []io.Writer{part, hash}
	if renderProgress(opts.NoProgress, resp.ContentLength) {
		bar := newBar(resp.ContentLength, opts.Description)
		defer func() { _ = bar.Finish() }()
		sinks = append(sinks, bar)
	}

	if _, err := io.Copy(io.MultiWriter(sinks...), resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if err := compare(expected, hash.Sum(nil)); err != nil {
		return err
	}

	if err := part.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := part.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(partPath, opts.Destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}
	return nil
}

func newBar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func renderProgress(noProgress bool, contentLength int64) bool {
	if noProgress || contentLength <= 0 {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
