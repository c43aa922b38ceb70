// Package remote implements the read-only client for the upstream change
// catalog. It pages through an OData-style feed ordered by modification
// time, retries transient failures with exponential backoff, and maps raw
// items into domain.Record values. It never touches local state.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
)

// ErrTooManyPages is returned when a fetch exceeds Config.MaxPages.
var ErrTooManyPages = errors.New("remote: page limit exceeded")

// StatusError is a non-success HTTP response from the catalog.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds the client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL     string
	PageSize    int
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	RateRPS     float64
	MaxPages    int
	UserAgent   string
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 500
	}
	if c.UserAgent == "" {
		c.UserAgent = "roadmap-replica"
	}
	return c
}

// Page is one decoded response page. Skipped counts items that could not
// be mapped to a record (missing id or title, bad timestamps).
type Page struct {
	Records []domain.Record
	Skipped int
}

// Client fetches change records from the remote catalog.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New constructs a Client. A nil httpClient uses a client bounded by
// cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateRPS > 0 {
		limit = rate.Limit(cfg.RateRPS)
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With().Str("component", "remote").Logger(),
	}
}

// Pages lazily fetches every record modified at or after since, newest
// first. Each call starts from the first page. A pageSize <= 0 uses the
// configured default. Iteration stops at the first error, which is yielded
// with a nil page.
func (c *Client) Pages(ctx context.Context, since domain.Timestamp, pageSize int) iter.Seq2[Page, error] {
	if pageSize <= 0 {
		pageSize = c.cfg.PageSize
	}
	return func(yield func(Page, error) bool) {
		next, err := c.firstPageURL(since, pageSize, 0)
		if err != nil {
			yield(Page{}, err)
			return
		}
		skip := 0
		for pages := 0; ; pages++ {
			if pages >= c.cfg.MaxPages {
				yield(Page{}, fmt.Errorf("%w (%d)", ErrTooManyPages, c.cfg.MaxPages))
				return
			}
			body, err := c.fetch(ctx, next)
			if err != nil {
				yield(Page{}, err)
				return
			}
			page, nextLink, n, err := decodePage(body)
			if err != nil {
				yield(Page{}, err)
				return
			}
			if n == 0 {
				return
			}
			if !yield(page, nil) {
				return
			}
			switch {
			case nextLink != "":
				next, err = c.resolve(nextLink)
				if err != nil {
					yield(Page{}, err)
					return
				}
			case n < pageSize:
				return
			default:
				skip += n
				next, err = c.firstPageURL(since, pageSize, skip)
				if err != nil {
					yield(Page{}, err)
					return
				}
			}
		}
	}
}

func (c *Client) firstPageURL(since domain.Timestamp, top, skip int) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("remote: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("$top", strconv.Itoa(top))
	q.Set("$orderby", "modified desc")
	if skip > 0 {
		q.Set("$skip", strconv.Itoa(skip))
	}
	if since.After(domain.Epoch) {
		q.Set("$filter", "modified ge "+since.String())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) resolve(link string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("remote: parse base url: %w", err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("remote: parse next link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// fetch performs one page request with bounded retries.
func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffBase
	b.Multiplier = 2
	b.MaxInterval = c.cfg.BackoffMax
	b.RandomizationFactor = 0

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		return c.do(ctx, target)
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Str("url", target).
			Msg("remote request failed, retrying")
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var ra *backoff.RetryAfterError
		if errors.As(err, &ra) {
			err = &StatusError{StatusCode: http.StatusTooManyRequests, Body: "retries exhausted"}
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			c.log.Error().Err(err).Str("url", target).Msg("remote rejected request")
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	se := &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 256)}
	if !se.Retryable() {
		return nil, backoff.Permanent(se)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, ok := retryAfterSeconds(resp.Header.Get("Retry-After")); ok {
			c.log.Warn().Int("retry_after_s", secs).Str("url", target).Msg("remote throttled request")
			// Longer waits use the capped exponential schedule instead.
			if time.Duration(secs)*time.Second <= c.cfg.BackoffMax {
				return nil, backoff.RetryAfter(secs)
			}
		}
	}
	return nil, se
}

type envelope struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// decodePage accepts either {"value":[...]} or a bare JSON array. It
// returns the mapped page, the next link (if any) and the raw item count.
func decodePage(body []byte) (Page, string, int, error) {
	var env envelope
	trimmed := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(body, &env.Value); err != nil {
			return Page{}, "", 0, fmt.Errorf("remote: decode page: %w", err)
		}
	case strings.HasPrefix(trimmed, "{"):
		if err := json.Unmarshal(body, &env); err != nil {
			return Page{}, "", 0, fmt.Errorf("remote: decode page: %w", err)
		}
	default:
		return Page{}, "", 0, fmt.Errorf("remote: decode page: unexpected body %q", truncate(trimmed, 64))
	}

	page := Page{Records: make([]domain.Record, 0, len(env.Value))}
	for _, raw := range env.Value {
		rec, ok := mapItem(raw)
		if !ok {
			page.Skipped++
			continue
		}
		page.Records = append(page.Records, rec)
	}
	return page, env.NextLink, len(env.Value), nil
}

func retryAfterSeconds(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Round(time.Second) / time.Second), true
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
