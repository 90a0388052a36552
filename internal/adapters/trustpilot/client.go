package trustpilot

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/domain"
)

const maxPageBytes = 16 << 20

type Options struct {
	UserAgent     string
	Timeout       time.Duration
	MaxAttempts   int
	Backoff       time.Duration
	RPS           int
	RespectRobots bool
}

type Client struct {
	hc          *http.Client
	rl          *rate.Limiter
	ua          string
	maxAttempts int
	backoffBase time.Duration
	robots      *RobotsGate
}

var _ domain.PageFetcher = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if opts.RPS <= 0 {
		opts.RPS = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	hc := &http.Client{Timeout: opts.Timeout}
	c := &Client{
		hc:          hc,
		rl:          rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		ua:          opts.UserAgent,
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.Backoff,
	}
	if opts.RespectRobots {
		c.robots = NewRobotsGate(hc, opts.UserAgent)
	}
	return c
}

// PageURL returns sourceURL with the page query parameter set.
func PageURL(sourceURL string, page int) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", sourceURL, err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage performs a GET with client-side rate limiting and retries on
// transport errors, 429 and transient 5xx, honoring Retry-After.
func (c *Client) FetchPage(ctx context.Context, sourceURL string, page int) (domain.Page, error) {
	pageURL, err := PageURL(sourceURL, page)
	if err != nil {
		return domain.Page{}, &domain.FetchFailure{URL: sourceURL, Page: page, Err: err}
	}
	fail := func(status int, err error) (domain.Page, error) {
		return domain.Page{URL: pageURL, Number: page, Status: status}, &domain.FetchFailure{URL: pageURL, Page: page, Status: status, Err: err}
	}

	if c.robots != nil {
		if err := c.robots.Allow(ctx, pageURL); err != nil {
			return fail(0, err)
		}
	}

	var lastErr error
	lastStatus := 0
	for i := 0; i < c.maxAttempts; i++ {
		if err := c.rl.Wait(ctx); err != nil {
			return fail(0, err)
		}

		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fail(0, err)
		}
		req.Header.Set("User-Agent", c.ua)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("trustpilot", 0, time.Since(start))
			if ctx.Err() != nil {
				return fail(0, ctx.Err())
			}
			lastErr, lastStatus = fmt.Errorf("%w: %v", domain.ErrTransient, err), 0
			log.Debug().Err(err).Str("url", pageURL).Int("attempt", i+1).Msg("fetch attempt failed")
			if i < c.maxAttempts-1 && sleepCtx(ctx, c.backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return fail(0, ctx.Err())
			}
			return fail(0, lastErr)
		}
		observability.ObserveExternal("trustpilot", resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := readBody(resp)
			resp.Body.Close()
			if err != nil {
				// a body cut off mid-read is as transient as a reset connection
				lastErr, lastStatus = fmt.Errorf("%w: read body: %v", domain.ErrTransient, err), resp.StatusCode
				if i < c.maxAttempts-1 && sleepCtx(ctx, c.backoff(i)) {
					continue
				}
				return fail(lastStatus, lastErr)
			}
			return domain.Page{URL: pageURL, Number: page, Status: resp.StatusCode, Content: body}, nil

		case resp.StatusCode == http.StatusNotFound:
			drain(resp)
			return fail(resp.StatusCode, domain.ErrNotFound)

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			return fail(resp.StatusCode, domain.ErrForbidden)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			drain(resp)
			if wait == 0 {
				wait = c.backoff(i)
			}
			lastErr, lastStatus = fmt.Errorf("%w: remote %d", domain.ErrTransient, resp.StatusCode), resp.StatusCode
			log.Debug().Int("status", resp.StatusCode).Str("url", pageURL).Int("attempt", i+1).Msg("transient status")
			if i < c.maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return fail(lastStatus, ctx.Err())
			}
			return fail(lastStatus, lastErr)

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fail(resp.StatusCode, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return fail(lastStatus, lastErr)
}

func readBody(resp *http.Response) ([]byte, error) {
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles the base each attempt with up to +50% jitter.
func (c *Client) backoff(i int) time.Duration {
	base := time.Duration(1<<i) * c.backoffBase
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
