// Package fetcher performs single HTTP page fetches against patent portals
// with per-host pacing and a process-wide politeness delay. Retry policy
// lives with the caller; one call here is one attempt.
package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/sells-group/priorart-cli/internal/resilience"
)

const maxBodyBytes = 4 << 20

// Options configures the page fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// MinDelay and DelayJitter pace consecutive network requests
	// process-wide, independent of per-host limits. Patent portals block
	// aggressive clients (403/412/503); a courtesy delay keeps request
	// volume below their thresholds.
	MinDelay    time.Duration
	DelayJitter float64

	RateLimiters map[string]*rate.Limiter
}

// PageFetcher fetches portal pages over net/http.
type PageFetcher struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter

	mu        sync.Mutex
	lastFetch time.Time
}

// DefaultRateLimiters returns conservative per-host pacing for the known
// patent portals.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"patents.google.com":               rate.NewLimiter(1, 2),
		"worldwide.espacenet.com":          rate.NewLimiter(1, 2),
		"pss-system.cponline.cnipa.gov.cn": rate.NewLimiter(0.5, 1),
		"www.lens.org":                     rate.NewLimiter(1, 2),
	}
}

// New creates a PageFetcher with the given options.
func New(opts Options) *PageFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 40 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; priorart-cli/1.0)"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &PageFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *PageFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.limiters[u.Host]
}

// politenessWait enforces the minimum inter-request delay across all hosts.
// The lock is held through the sleep so concurrent callers queue up and the
// delay separates every pair of requests, not just sequential ones.
func (f *PageFetcher) politenessWait(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.opts.MinDelay > 0 && !f.lastFetch.IsZero() {
		if elapsed := time.Since(f.lastFetch); elapsed < f.opts.MinDelay {
			resilience.SleepWithJitter(ctx, f.opts.MinDelay-elapsed, f.opts.DelayJitter)
		}
	}
	f.lastFetch = time.Now()
}

// Get performs one GET against the URL and returns the decoded body.
// Non-2xx responses are returned as *resilience.StatusError so the caller
// can classify transient, blocking, and permanent failures.
func (f *PageFetcher) Get(ctx context.Context, rawURL string) (string, error) {
	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "fetcher: rate limiter wait")
		}
	}
	f.politenessWait(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &resilience.StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: read body %s", rawURL)
	}

	return decodeBody(raw, resp.Header.Get("Content-Type")), nil
}

// decodeBody converts the response to UTF-8 using the declared charset.
// CNIPA and some mirrors still serve GBK/GB2312 pages; undecodable input
// falls back to the raw bytes.
func decodeBody(raw []byte, contentType string) string {
	charset := ""
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			charset = strings.ToLower(params["charset"])
		}
	}
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(raw)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		zap.L().Debug("fetcher: unknown charset, using raw bytes", zap.String("charset", charset))
		return string(raw)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
