package behaviors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/abdul-hamid-achik/hitquery/packages/cache"
	"github.com/abdul-hamid-achik/hitquery/packages/metrics"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLatency(t *testing.T) {
	rec := metrics.NewRecorder()
	fail := false
	q := queryable.New("https://example.com").Using(RecordLatency(rec))
	q.On.Send.Replace(func(ctx context.Context, url string, init *queryable.Init) (*http.Response, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return nil, nil
	})

	_, err := q.Get(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = q.Get(context.Background())
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Execute(context.Background(), &queryable.Init{Signal: cancelled})
	require.Error(t, err)

	summary := rec.Snapshot()
	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, int64(1), summary.Success)
	assert.Equal(t, int64(2), summary.Errors)
	assert.Equal(t, int64(1), summary.Aborted)
	require.Contains(t, summary.Targets, "https://example.com")
}

func TestInstrument(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry(registry)

	var send fakeSend
	q := queryable.New("https://example.com").Using(
		Instrument(collector),
		Caching(CacheProps{Store: cache.NewMemoryStore()}),
		DefaultParse(),
	)
	send.install(q, counterResponse)

	_, err := q.Get(context.Background())
	require.NoError(t, err)
	_, err = q.Get(context.Background())
	require.NoError(t, err)
	_, err = q.Execute(context.Background(), &queryable.Init{Method: http.MethodPost, Headers: map[string]string{"X-Cache-Never": "1"}})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "hitquery_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
