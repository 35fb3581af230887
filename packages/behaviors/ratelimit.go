package behaviors

import (
	"context"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"golang.org/x/time/rate"
)

// RateLimit makes every call of the queryable wait on a shared token bucket
// allowing limit calls per second with the given burst. The wait ends
// early when the call's context or init.Signal is cancelled.
func RateLimit(limit rate.Limit, burst int) queryable.Behavior {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	return func(q *queryable.Queryable) {
		q.On.Pre.Add(func(ctx context.Context, url string, init *queryable.Init, result any) (string, any, error) {
			waitCtx, release := queryable.SignalContext(ctx, init)
			defer release()
			if err := limiter.Wait(waitCtx); err != nil {
				if waitCtx.Err() != nil {
					return "", nil, &queryable.AbortError{Cause: context.Cause(waitCtx)}
				}
				return "", nil, err
			}
			return url, result, nil
		})
	}
}
