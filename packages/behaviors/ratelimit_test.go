package behaviors

import (
	"context"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimit_Unlimited(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(RateLimit(rate.Inf, 1))
	send.install(q, jsonResponse(`{}`))

	for i := 0; i < 5; i++ {
		_, err := q.Get(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(5), send.count.Load())
}

func TestRateLimit_BucketIsShared(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(RateLimit(rate.Every(time.Hour), 1))
	send.install(q, jsonResponse(`{}`))

	_, err := q.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Child("other").Get(ctx)

	assert.Error(t, err)
	assert.Equal(t, int32(1), send.count.Load())
}

func TestRateLimit_CancelledContext(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(RateLimit(rate.Every(time.Hour), 1))
	send.install(q, jsonResponse(`{}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Get(ctx)

	assert.True(t, queryable.IsAbort(err))
	assert.Equal(t, int32(0), send.count.Load())
}

func TestRateLimit_SignalCancelsWait(t *testing.T) {
	var send fakeSend
	signal, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := queryable.New("https://example.com").Using(
		Timeout(signal),
		RateLimit(rate.Every(2*time.Second), 1),
	)
	send.install(q, jsonResponse(`{}`))

	_, err := q.Get(context.Background())
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	_, err = q.Get(context.Background())

	var abortErr *queryable.AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), send.count.Load())
}
