package queryable

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Call carries the state of a single Execute invocation. Observers reach it
// through CallFrom.
type Call struct {
	ID        string
	Method    string
	Queryable *Queryable
	Started   time.Time

	mu     sync.RWMutex
	values map[any]any
}

func newCall(q *Queryable, method string) *Call {
	return &Call{
		ID:        uuid.NewString(),
		Method:    method,
		Queryable: q,
		Started:   time.Now(),
		values:    make(map[any]any),
	}
}

// Set stores a value for the rest of the call.
func (c *Call) Set(key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Value returns a value stored with Set.
func (c *Call) Value(key any) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

type callKey struct{}

// CallFrom returns the call running in ctx, or nil outside of Execute.
func CallFrom(ctx context.Context) *Call {
	c, _ := ctx.Value(callKey{}).(*Call)
	return c
}

func withCall(ctx context.Context, c *Call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}
