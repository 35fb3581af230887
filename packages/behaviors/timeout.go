package behaviors

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

// Timeout ties every call to signal. A call whose signal is already done
// fails with *queryable.AbortError before dispatch.
func Timeout(signal context.Context) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Pre.Add(func(ctx context.Context, url string, init *queryable.Init, result any) (string, any, error) {
			init.Signal = signal
			return url, result, nil
		})
	}
}

// TimeoutAfter aborts calls whose dispatch takes longer than d.
func TimeoutAfter(d time.Duration) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Pre.Add(func(ctx context.Context, url string, init *queryable.Init, result any) (string, any, error) {
			init.Timeout = d
			return url, result, nil
		})
	}
}
