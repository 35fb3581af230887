package queryable

import (
	"context"
	"net/http"
	"sync"
)

// PreFunc observes a call before authentication and dispatch. Returning a
// non-nil result ends the timeline early with that result.
type PreFunc func(ctx context.Context, url string, init *Init, result any) (string, any, error)

// AuthFunc applies credentials to the outgoing request.
type AuthFunc func(ctx context.Context, url string, init *Init) (string, error)

// SendFunc performs the network call. Only the first registered send
// observer runs.
type SendFunc func(ctx context.Context, url string, init *Init) (*http.Response, error)

// ParseFunc turns the response into a result.
type ParseFunc func(ctx context.Context, url string, resp *http.Response, result any) (any, error)

// PostFunc post-processes a parsed result.
type PostFunc func(ctx context.Context, url string, result any) (any, error)

// DataFunc receives the final result of a successful call.
type DataFunc func(ctx context.Context, result any)

// ErrorFunc receives the error that ended a call.
type ErrorFunc func(ctx context.Context, err error)

// LogFunc receives log messages emitted by the queryable and its behaviors.
type LogFunc func(msg string, level LogLevel)

// Moment is an ordered list of observers for one stage of the timeline.
type Moment[F any] struct {
	mu        sync.RWMutex
	observers []F
}

// Add appends an observer.
func (m *Moment[F]) Add(f F) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, f)
}

// Prepend inserts an observer ahead of the existing ones.
func (m *Moment[F]) Prepend(f F) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append([]F{f}, m.observers...)
}

// Replace drops every observer and registers f as the only one.
func (m *Moment[F]) Replace(f F) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = []F{f}
}

// Clear removes all observers and reports whether any were registered.
func (m *Moment[F]) Clear() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := len(m.observers) > 0
	m.observers = nil
	return had
}

// Len returns the number of registered observers.
func (m *Moment[F]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}

// Observers returns a snapshot of the registered observers.
func (m *Moment[F]) Observers() []F {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]F, len(m.observers))
	copy(out, m.observers)
	return out
}

func (m *Moment[F]) copyFrom(other *Moment[F]) {
	obs := other.Observers()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = obs
}

// Hooks holds the moments of a queryable's timeline.
type Hooks struct {
	Pre   Moment[PreFunc]
	Auth  Moment[AuthFunc]
	Send  Moment[SendFunc]
	Parse Moment[ParseFunc]
	Post  Moment[PostFunc]
	Data  Moment[DataFunc]
	Error Moment[ErrorFunc]
	Log   Moment[LogFunc]
}

func (h *Hooks) clone() *Hooks {
	c := &Hooks{}
	c.Pre.copyFrom(&h.Pre)
	c.Auth.copyFrom(&h.Auth)
	c.Send.copyFrom(&h.Send)
	c.Parse.copyFrom(&h.Parse)
	c.Post.copyFrom(&h.Post)
	c.Data.copyFrom(&h.Data)
	c.Error.copyFrom(&h.Error)
	c.Log.copyFrom(&h.Log)
	return c
}
