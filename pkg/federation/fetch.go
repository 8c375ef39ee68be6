package federation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"fedbuild/pkg/utils"
)

// DefaultFetchTimeout bounds a single fetch attempt.
const DefaultFetchTimeout = 30 * time.Second

// ErrModuleTooLarge is wrapped by a FetchError when a body exceeds the limit.
var ErrModuleTooLarge = errors.New("module exceeds size limit")

// Fetcher retrieves the source of an exposed module.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetchTimeoutError is returned when an attempt exceeds its timeout.
type FetchTimeoutError struct {
	Location string
	Timeout  time.Duration
}

func (e *FetchTimeoutError) Error() string {
	return fmt.Sprintf("fetch %s timed out after %s", e.Location, e.Timeout)
}

// FetchError is returned for non-success responses and transport failures.
// Status is zero when no response was received.
type FetchError struct {
	Location string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.Location, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.Location, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches http(s) locations over the network and reads file://
// URLs or bare paths from disk. It never caches.
type HTTPFetcher struct {
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
	maxSize int64

	// Retries is zero unless configured: a failed fetch fails the load.
	retries      int
	baseDelay    time.Duration
	maxDelay     time.Duration
	jitterFactor float64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithFetchTimeout sets the per-attempt timeout. Zero disables it.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithMaxModuleSize rejects bodies larger than n bytes. Zero means no limit.
func WithMaxModuleSize(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxSize = n
	}
}

// WithRetry enables retries of transient failures with exponential backoff.
func WithRetry(retries int, baseDelay, maxDelay time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.retries = retries
		f.baseDelay = baseDelay
		f.maxDelay = maxDelay
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *zap.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewHTTPFetcher creates a fetcher with a 30s timeout and no retries.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:       &http.Client{},
		logger:       zap.NewNop(),
		timeout:      DefaultFetchTimeout,
		baseDelay:    100 * time.Millisecond,
		maxDelay:     5 * time.Second,
		jitterFactor: 0.2,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body at location.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := f.fetchOnce(ctx, location)
		if err == nil {
			f.logger.Debug("Fetched exposed module",
				zap.String("location", location),
				zap.String("size", utils.FormatDataSize(int64(len(body)))),
				zap.Int("attempt", attempt+1))
			return body, nil
		}

		if !isRetryableFetchError(err) {
			return nil, err
		}
		lastErr = err

		if attempt < f.retries {
			delay := f.calculateBackoff(attempt)
			f.logger.Debug("Fetch failed, retrying",
				zap.String("location", location),
				zap.Int("attempt", attempt+1),
				zap.Duration("retry_in", delay),
				zap.Error(err))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.fetchHTTP(ctx, location)
	}
	if err == nil && u.Scheme == "file" {
		return f.readFile(location, u.Path)
	}
	return f.readFile(location, location)
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	attemptCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Location: location, Status: resp.StatusCode}
	}

	body, err := f.readLimited(location, resp.Body)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, f.classify(ctx, location, err)
	}
	return body, nil
}

func (f *HTTPFetcher) readFile(location, path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Location: location, Status: statusForFileError(err), Err: err}
	}
	defer file.Close()

	body, err := f.readLimited(location, file)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FetchError{Location: location, Err: err}
	}
	return body, nil
}

func (f *HTTPFetcher) readLimited(location string, r io.Reader) ([]byte, error) {
	if f.maxSize <= 0 {
		return io.ReadAll(r)
	}

	body, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxSize {
		return nil, &FetchError{
			Location: location,
			Err:      fmt.Errorf("%w of %s", ErrModuleTooLarge, utils.FormatDataSize(f.maxSize)),
		}
	}
	return body, nil
}

// classify turns a transport error into a typed fetch failure. Only the
// attempt's own deadline counts as a timeout; a cancelled parent is returned
// as is.
func (f *HTTPFetcher) classify(parent context.Context, location string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchTimeoutError{Location: location, Timeout: f.timeout}
	}
	return &FetchError{Location: location, Err: err}
}

// calculateBackoff returns baseDelay * 2^attempt capped at maxDelay, with jitter.
func (f *HTTPFetcher) calculateBackoff(attempt int) time.Duration {
	delay := float64(f.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(f.maxDelay) {
		delay = float64(f.maxDelay)
	}

	delay += delay * f.jitterFactor * (2*rand.Float64() - 1)
	if delay < 0 {
		delay = float64(f.baseDelay)
	}
	return time.Duration(delay)
}

func isRetryableFetchError(err error) bool {
	var timeoutErr *FetchTimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Status == 0 {
			var pathErr *fs.PathError
			return !errors.Is(fetchErr.Err, ErrModuleTooLarge) && !errors.As(fetchErr.Err, &pathErr)
		}
		return fetchErr.Status >= 500
	}
	return false
}

func statusForFileError(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, os.ErrPermission):
		return http.StatusForbidden
	default:
		return 0
	}
}
