package checker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sitecheck/internal/logging"
)

// Browser-like header set sent with every request. Some hosts answer
// differently (or not at all) to obvious bot traffic.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// retryBackoff is the fixed sleep between fetch attempts. Deliberately not
// exponential: retries here paper over transient transport hiccups, they are
// not a rate-limit-aware policy.
const retryBackoff = 250 * time.Millisecond

// Response is the transport-level result of a single fetch.
type Response struct {
	StatusCode  int
	Headers     http.Header
	Cookies     []*http.Cookie
	Body        []byte
	FinalURL    string
	ContentType string
}

// Fetcher issues GET requests with bounded retries on transport failures.
// A received HTTP response of any status is a terminal outcome, never
// retried.
type Fetcher struct {
	follow   *http.Client
	noFollow *http.Client
	retries  int
	logger   *zap.Logger
}

// NewFetcher builds a Fetcher for one job. The two clients differ only in
// redirect policy so the caller can observe the first hop or the final
// content of the same URL.
func NewFetcher(runtime RuntimeOptions, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(runtime.TimeoutSeconds) * time.Second
	return &Fetcher{
		follow: &http.Client{Timeout: timeout},
		noFollow: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retries: runtime.Retries,
		logger:  logger,
	}
}

// Fetch performs a GET with up to retries+1 attempts, sleeping a fixed
// interval between attempts. Returns nil once attempts are exhausted or the
// context ends; callers degrade the affected fields instead of failing.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, follow bool) *Response {
	for attempt := 0; attempt <= f.retries; attempt++ {
		resp, err := f.Do(ctx, rawURL, follow, 0)
		if err == nil {
			return resp
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if attempt == f.retries {
			f.logger.Debug("fetch exhausted retries",
				zap.String("url", logging.MaskURL(rawURL)),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryBackoff):
		}
	}
	return nil
}

// Do performs exactly one attempt. An extra per-call timeout tighter than
// the client default can be supplied (0 means none). Exposed for callers
// that need the transport error, such as the CMS classifier's scheme
// fallback.
func (f *Fetcher) Do(ctx context.Context, rawURL string, follow bool, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	client := f.noFollow
	if follow {
		client = f.follow
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Cookies:     resp.Cookies(),
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Retries reports the configured retry count (attempts are Retries+1).
func (f *Fetcher) Retries() int {
	return f.retries
}
