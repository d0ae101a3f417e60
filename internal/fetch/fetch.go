// Package fetch retrieves remote configuration, data and template documents over HTTP(S).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// MaxResponseBytes caps the size of a single fetched document.
const MaxResponseBytes = 5 * 1024 * 1024

const maxRedirects = 5

// StatusError is returned for non-2xx responses. A 404 matches fs.ErrNotExist.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Code)
}

// Is lets callers treat a missing remote document like a missing local file.
func (e *StatusError) Is(target error) bool {
	return target == fs.ErrNotExist && (e.Code == http.StatusNotFound || e.Code == http.StatusGone)
}

// Options configures a Fetcher.
type Options struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// Fetcher downloads documents and remembers them for the lifetime of the value,
// so a URL referenced by several targets in one invocation is requested once.
type Fetcher struct {
	client *retryablehttp.Client

	mu    sync.Mutex
	cache map[string][]byte
}

// NewHTTPClient creates a retrying client that refuses cross-host redirects.
func NewHTTPClient(opts Options) *retryablehttp.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	base := cleanhttp.DefaultPooledClient()
	base.Timeout = opts.Timeout
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) == 0 {
			return nil
		}
		if req.URL.Host != via[0].URL.Host {
			return errors.New("redirect to different host blocked")
		}
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return nil
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = base
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = opts.Logger
	return client
}

// New returns a Fetcher using NewHTTPClient.
func New(opts Options) *Fetcher {
	return NewWithClient(NewHTTPClient(opts))
}

// NewWithClient wraps an existing client.
func NewWithClient(client *retryablehttp.Client) *Fetcher {
	return &Fetcher{client: client, cache: map[string][]byte{}}
}

// Fetch returns the body of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if data, ok := f.cache[rawURL]; ok {
		f.mu.Unlock()
		return data, nil
	}
	f.mu.Unlock()

	data, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[rawURL] = data
	f.mu.Unlock()
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, MaxResponseBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > MaxResponseBytes {
		return nil, fmt.Errorf("fetch %s: response too large", rawURL)
	}
	return data, nil
}

// ValidateURL accepts only absolute http and https URLs.
func ValidateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return parsed, nil
}
