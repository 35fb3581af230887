package behaviors

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, `{"name":"ada"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
	defer server.Close()

	q := queryable.New(server.URL, "users").Using(BearerToken("t"), DefaultParse(), Fetch())
	q.Query().Set("page", "1")

	result, err := q.Post(context.Background(), &queryable.Init{Body: []byte(`{"name":"ada"}`)})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"created": true}, result)
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer server.Close()

	q := queryable.New(server.URL).Using(DefaultParse(), Fetch())

	_, err := q.Get(context.Background())

	var httpErr *queryable.HTTPRequestError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	assert.Equal(t, "Forbidden", httpErr.StatusText)
	assert.Equal(t, "denied", httpErr.Body)
}

func TestFetch_InvalidURL(t *testing.T) {
	q := queryable.New("ftp://example.com").Using(Fetch())

	_, err := q.Get(context.Background())

	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func flakyServer(t *testing.T, failures int32, status int, headers map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			for k, v := range headers {
				w.Header().Set(k, v)
			}
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestFetchWithRetry_RecoversFromRetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server, hits := flakyServer(t, 2, status, nil)
			q := queryable.New(server.URL).Using(DefaultParse(), FetchWithRetry(3, time.Millisecond))

			result, err := q.Get(context.Background())

			require.NoError(t, err)
			assert.Equal(t, map[string]any{"ok": true}, result)
			assert.Equal(t, int32(3), hits.Load())
		})
	}
}

func TestFetchWithRetry_GivesUp(t *testing.T) {
	server, hits := flakyServer(t, 100, http.StatusServiceUnavailable, nil)
	q := queryable.New(server.URL).Using(DefaultParse(), FetchWithRetry(2, time.Millisecond))

	_, err := q.Get(context.Background())

	var httpErr *queryable.HTTPRequestError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchWithRetry_DoesNotRetryOtherStatuses(t *testing.T) {
	server, hits := flakyServer(t, 100, http.StatusInternalServerError, nil)
	q := queryable.New(server.URL).Using(DefaultParse(), FetchWithRetry(3, time.Millisecond))

	_, err := q.Get(context.Background())

	assert.True(t, queryable.IsHTTPRequestError(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchWithRetry_HonoursRetryAfter(t *testing.T) {
	server, hits := flakyServer(t, 1, http.StatusTooManyRequests, map[string]string{"Retry-After": "0"})
	q := queryable.New(server.URL).Using(DefaultParse(), FetchWithRetry(1, time.Hour))

	start := time.Now()
	_, err := q.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestFetchWithRetry_CancellationStopsRetrying(t *testing.T) {
	server, hits := flakyServer(t, 100, http.StatusServiceUnavailable, nil)
	q := queryable.New(server.URL).Using(
		TimeoutAfter(50*time.Millisecond),
		DefaultParse(),
		FetchWithRetry(5, time.Hour),
	)

	_, err := q.Get(context.Background())

	assert.True(t, queryable.IsAbort(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchWithRetry_TransportErrors(t *testing.T) {
	var attempts atomic.Int32
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if attempts.Add(1) < 3 {
			return nil, io.ErrUnexpectedEOF
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header:     http.Header{},
			Body:       io.NopCloser(http.NoBody),
			Request:    r,
		}, nil
	})
	q := queryable.New("https://example.com").Using(DefaultParse(), FetchWithRetry(3, time.Millisecond, withTransport(rt)))

	result, err := q.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, result)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		attempt  int
		want     time.Duration
	}{
		{name: "first attempt", interval: time.Second, attempt: 0, want: time.Second},
		{name: "doubles", interval: time.Second, attempt: 3, want: 8 * time.Second},
		{name: "capped", interval: time.Second, attempt: 10, want: MaxRetryDelay},
		{name: "no overflow on large attempts", interval: time.Second, attempt: 64, want: MaxRetryDelay},
		{name: "interval above cap", interval: 2 * time.Minute, attempt: 5, want: 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backoff(tt.interval, tt.attempt))
		})
	}
}
