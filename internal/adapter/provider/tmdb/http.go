package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/heartmarshall/filmstats-backend/internal/provider"
	"github.com/heartmarshall/filmstats-backend/pkg/ctxutil"
)

// errMalformedBody marks a 2xx response whose body could not be decoded.
var errMalformedBody = errors.New("malformed response body")

// statusError is a non-2xx response.
type statusError struct {
	status     int
	message    string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("unexpected status %d", e.status)
}

// getJSON fetches path and decodes the body into target.
// Transient failures are retried with exponential backoff; 429 responses
// pause the shared limiter and do not consume a retry.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, target any) error {
	endpoint := c.buildURL(path, params)

	attempt := 0
	op := func() error {
		attempt++
		return classify(ctx, c.dispatch(ctx, path, endpoint, target))
	}
	notify := func(err error, next time.Duration) {
		c.metrics.retry(ctx, path)
		c.log.WarnContext(ctx, "tmdb retry",
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", next),
			slog.String("session_id", ctxutil.SessionIDFromCtx(ctx)),
			slog.String("error", err.Error()),
		)
	}

	err := backoff.RetryNotify(op, c.newBackOff(ctx), notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("tmdb %s: %w", path, ctxErr)
	}
	return fmt.Errorf("tmdb %s: %w", path, err)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = c.retryBaseDelay << 5
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)
}

// dispatch issues one logical request, re-sending it while the server throttles.
func (c *Client) dispatch(ctx context.Context, path, endpoint string, target any) error {
	for throttled := 0; ; throttled++ {
		waited, err := c.limiter.Wait(ctx)
		if err != nil {
			return err
		}
		if waited > 0 {
			c.metrics.recordLimiterWait(ctx, waited)
		}

		err = c.doJSONRequest(ctx, endpoint, target)

		var se *statusError
		if !errors.As(err, &se) || se.status != http.StatusTooManyRequests {
			return err
		}
		if throttled >= c.maxThrottled {
			return fmt.Errorf("%w: %d consecutive 429 responses", provider.ErrRateLimited, throttled+1)
		}

		pause := se.retryAfter
		if pause <= 0 {
			pause = c.limiter.Window()
		}
		c.limiter.Pause(pause)
		c.log.WarnContext(ctx, "tmdb throttled",
			slog.String("path", path),
			slog.Duration("pause", pause),
		)
	}
}

func (c *Client) doJSONRequest(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	c.metrics.request(ctx, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	return nil
}

func newStatusError(resp *http.Response) *statusError {
	se := &statusError{
		status:     resp.StatusCode,
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.StatusMessage != "" {
		se.message = apiErr.StatusMessage
	} else {
		se.message = strings.TrimSpace(string(body))
	}
	return se
}

// classify maps a dispatch error to the catalog taxonomy. Anything not
// returned as retryable is wrapped in backoff.Permanent. Apart from context
// errors, every result wraps one of the provider sentinels.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}
	if errors.Is(err, provider.ErrRateLimited) {
		return backoff.Permanent(err)
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %w", provider.ErrNotFound, err))
		case se.status == http.StatusUnauthorized || se.status == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("%w: %w", provider.ErrFatal, err))
		case se.status >= 500 || se.status == http.StatusRequestTimeout:
			return fmt.Errorf("%w: %w", provider.ErrTransient, err)
		case se.status >= 400:
			// The catalog refuses this lookup; asking again will not change that.
			return backoff.Permanent(fmt.Errorf("%w: %w", provider.ErrNotFound, err))
		default:
			return backoff.Permanent(fmt.Errorf("%w: %w", provider.ErrTransient, err))
		}
	}

	if errors.Is(err, errMalformedBody) {
		return backoff.Permanent(fmt.Errorf("%w: %w", provider.ErrTransient, err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", provider.ErrTransient, err)
	}

	return backoff.Permanent(fmt.Errorf("%w: %w", provider.ErrTransient, err))
}

func (c *Client) buildURL(path string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)
	return strings.TrimRight(c.baseURL, "/") + path + "?" + q.Encode()
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unknown formats yield 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
