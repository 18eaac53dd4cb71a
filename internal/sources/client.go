package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// jsonClient is the shared transport of the HTTP sources: one long-lived
// *http.Client plus a rate limiter per upstream.
type jsonClient struct {
	source  string
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

func newJSONClient(source string, timeout time.Duration, perSecond float64, burst int) *jsonClient {
	return &jsonClient{
		source:  source,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		headers: map[string]string{"Accept": "application/json"},
	}
}

// get issues a GET for rawURL with query appended and decodes the JSON body
// into dest. Failures come back as *Error, except context cancellation which
// is returned wrapped but unclassified.
func (c *jsonClient) get(ctx context.Context, rawURL string, query url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.source, ctx.Err())
		}
		return newError(c.source, ErrRateLimited, err)
	}

	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return newError(c.source, ErrNotFound, fmt.Errorf("build request: %w", err))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.source, ctx.Err())
		}
		// *url.Error repeats the full URL, which may carry a token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return newError(c.source, ErrTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return newError(c.source, kindForStatus(resp.StatusCode),
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dest); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.source, ctx.Err())
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return newError(c.source, ErrTimeout, err)
		}
		return newError(c.source, ErrMalformedResponse, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// Close releases idle connections held by the shared client.
func (c *jsonClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
