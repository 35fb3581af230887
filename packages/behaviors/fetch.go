package behaviors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	hqhttp "github.com/abdul-hamid-achik/hitquery/packages/http"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

const (
	// DefaultRetries is used by FetchWithRetry when retries is negative.
	DefaultRetries = 3
	// DefaultRetryInterval is used by FetchWithRetry when interval is not positive.
	DefaultRetryInterval = 3 * time.Second
	// MaxRetryDelay caps the exponential backoff unless interval is larger.
	MaxRetryDelay = time.Minute
)

// Fetch dispatches calls with the hitquery HTTP client.
func Fetch(opts ...hqhttp.ClientOption) queryable.Behavior {
	client := hqhttp.NewClient(opts...)
	return func(q *queryable.Queryable) {
		q.On.Send.Replace(func(ctx context.Context, url string, init *queryable.Init) (*http.Response, error) {
			resp, err := client.Do(ctx, toRequest(url, init))
			if err != nil {
				return nil, err
			}
			return resp.ToStd(), nil
		})
	}
}

// FetchWithRetry is like Fetch but retries transport errors and 429, 503
// and 504 responses. The wait honours Retry-After and otherwise doubles
// interval on each attempt. Cancellation stops retrying.
func FetchWithRetry(retries int, interval time.Duration, opts ...hqhttp.ClientOption) queryable.Behavior {
	if retries < 0 {
		retries = DefaultRetries
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	client := hqhttp.NewClient(opts...)

	return func(q *queryable.Queryable) {
		q.On.Send.Replace(func(ctx context.Context, url string, init *queryable.Init) (*http.Response, error) {
			req := toRequest(url, init)
			for attempt := 0; ; attempt++ {
				resp, err := client.Do(ctx, req)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}

				if attempt >= retries || (err == nil && !retryableStatus(resp.StatusCode)) {
					if err != nil {
						return nil, err
					}
					return resp.ToStd(), nil
				}

				delay := backoff(interval, attempt)
				var reason string
				if err != nil {
					reason = err.Error()
				} else {
					reason = resp.Status
					if after, ok := resp.RetryAfter(); ok {
						delay = after
					}
				}
				q.Log(fmt.Sprintf("[%s] attempt %d of %d failed (%s), retrying in %s",
					callIDFrom(ctx), attempt+1, retries+1, reason, delay), queryable.Warning)

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
		})
	}
}

// backoff doubles interval per attempt up to max(MaxRetryDelay, interval)
func backoff(interval time.Duration, attempt int) time.Duration {
	limit := max(MaxRetryDelay, interval)
	d := interval
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func toRequest(url string, init *queryable.Init) *hqhttp.Request {
	return hqhttp.NewRequest(init.Method, url).SetHeaders(init.Headers).SetBody(init.Body)
}

func callIDFrom(ctx context.Context) string {
	if call := queryable.CallFrom(ctx); call != nil {
		return call.ID
	}
	return "-"
}
