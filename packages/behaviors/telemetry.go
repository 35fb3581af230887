package behaviors

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/metrics"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

type cacheHitMarker struct{}

// RecordLatency records the duration and outcome of every call in rec,
// keyed by the queryable's URL.
func RecordLatency(rec *metrics.Recorder) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Data.Add(func(ctx context.Context, result any) {
			if call := queryable.CallFrom(ctx); call != nil {
				rec.Record(call.Queryable.URL(), time.Since(call.Started), nil)
			}
		})
		q.On.Error.Add(func(ctx context.Context, err error) {
			call := queryable.CallFrom(ctx)
			if call == nil {
				return
			}
			rec.Record(call.Queryable.URL(), time.Since(call.Started), err)
			if queryable.IsAbort(err) {
				rec.RecordAbort()
			}
		})
	}
}

// Instrument exports every call to c labelled by method and outcome.
func Instrument(c *metrics.Collector) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Data.Add(func(ctx context.Context, result any) {
			call := queryable.CallFrom(ctx)
			if call == nil {
				return
			}
			outcome := metrics.OutcomeSuccess
			if _, hit := call.Value(cacheHitMarker{}); hit {
				outcome = metrics.OutcomeCacheHit
			}
			c.Observe(call.Method, outcome, time.Since(call.Started))
		})
		q.On.Error.Add(func(ctx context.Context, err error) {
			call := queryable.CallFrom(ctx)
			if call == nil {
				return
			}
			outcome := metrics.OutcomeError
			if queryable.IsAbort(err) {
				outcome = metrics.OutcomeAborted
			}
			c.Observe(call.Method, outcome, time.Since(call.Started))
		})
	}
}
