package behaviors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/cache"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"golang.org/x/sync/singleflight"
)

const (
	// CacheAlwaysHeader makes any method cacheable.
	CacheAlwaysHeader = "X-Cache-Always"
	// CacheNeverHeader disables caching for a call.
	CacheNeverHeader = "X-Cache-Never"
)

// DefaultRefreshTimeout bounds a background refresh.
const DefaultRefreshTimeout = 30 * time.Second

// CacheProps configures Caching and CachingPessimisticRefresh. Zero fields
// fall back to the session store, cache.DefaultKeyFactory and
// cache.DefaultExpire.
type CacheProps struct {
	Store      cache.Store
	StoreKind  cache.StoreKind
	KeyFactory func(url string) string
	ExpireFunc func(url string) time.Time
}

type (
	cacheKeyMarker struct{}
	refreshMarker  struct{}
)

type cacher struct {
	props CacheProps

	once     sync.Once
	store    cache.Store
	storeErr error

	refreshes singleflight.Group
}

func newCacher(props []CacheProps) *cacher {
	c := &cacher{}
	if len(props) > 0 {
		c.props = props[0]
	}
	if c.props.KeyFactory == nil {
		c.props.KeyFactory = cache.DefaultKeyFactory
	}
	if c.props.ExpireFunc == nil {
		c.props.ExpireFunc = cache.DefaultExpire
	}
	return c
}

func (c *cacher) resolve() (cache.Store, error) {
	c.once.Do(func() {
		if c.props.Store != nil {
			c.store = c.props.Store
			return
		}
		c.store, c.storeErr = cache.Resolve(c.props.StoreKind)
	})
	return c.store, c.storeErr
}

// Caching serves cacheable calls from a store. GET calls are cacheable unless
// the X-Cache-Never header is set; X-Cache-Always makes any method cacheable.
// Both headers are removed before dispatch.
func Caching(props ...CacheProps) queryable.Behavior {
	c := newCacher(props)
	return func(q *queryable.Queryable) {
		q.On.Pre.Add(c.pre(false))
		q.On.Post.Add(c.post)
	}
}

// CachingPessimisticRefresh is like Caching but every hit also refreshes the
// entry in the background. Concurrent refreshes of one key share a dispatch.
func CachingPessimisticRefresh(props ...CacheProps) queryable.Behavior {
	c := newCacher(props)
	return func(q *queryable.Queryable) {
		q.On.Pre.Add(c.pre(true))
		q.On.Post.Add(c.post)
	}
}

func (c *cacher) pre(refresh bool) queryable.PreFunc {
	return func(ctx context.Context, url string, init *queryable.Init, result any) (string, any, error) {
		original := init.Clone()
		if !cacheable(init) || result != nil {
			return url, result, nil
		}
		call := queryable.CallFrom(ctx)
		if call == nil {
			return url, result, nil
		}

		store, err := c.resolve()
		if err != nil {
			call.Queryable.Log(fmt.Sprintf("[%s] caching disabled: %v", call.ID, err), queryable.Warning)
			return url, result, nil
		}

		key := c.props.KeyFactory(url)
		call.Set(cacheKeyMarker{}, key)

		if ctx.Value(refreshMarker{}) != nil {
			return url, result, nil
		}

		entry, ok, err := store.Get(ctx, key)
		if err != nil {
			call.Queryable.Log(fmt.Sprintf("[%s] cache read failed: %v", call.ID, err), queryable.Warning)
			return url, result, nil
		}
		if !ok {
			return url, result, nil
		}

		call.Set(cacheHitMarker{}, true)
		call.Queryable.Log(fmt.Sprintf("[%s] value returned from cache", call.ID), queryable.Verbose)
		if refresh {
			c.refresh(ctx, call.Queryable, key, original)
		}
		return url, thaw(entry.Value), nil
	}
}

func (c *cacher) post(ctx context.Context, url string, result any) (any, error) {
	call := queryable.CallFrom(ctx)
	if call == nil {
		return result, nil
	}
	key, ok := call.Value(cacheKeyMarker{})
	if !ok {
		return result, nil
	}
	if _, raw := result.(*http.Response); raw || result == nil {
		return result, nil
	}

	store, err := c.resolve()
	if err != nil {
		return result, nil
	}
	value, err := freeze(result)
	if err != nil {
		call.Queryable.Log(fmt.Sprintf("[%s] result not cached: %v", call.ID, err), queryable.Warning)
		return result, nil
	}
	entry := &cache.Entry{Value: value, Expiration: c.props.ExpireFunc(url)}
	if err := store.Put(ctx, key.(string), entry); err != nil {
		call.Queryable.Log(fmt.Sprintf("[%s] cache write failed: %v", call.ID, err), queryable.Warning)
	}
	return result, nil
}

// refresh re-executes q in the background with the cache lookup bypassed so
// the post observer overwrites the entry.
func (c *cacher) refresh(ctx context.Context, q *queryable.Queryable, key string, init *queryable.Init) {
	init.Signal = nil
	refreshCtx := context.WithValue(context.WithoutCancel(ctx), refreshMarker{}, true)

	// DoChan buffers its result so the channel can be dropped.
	c.refreshes.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(refreshCtx, DefaultRefreshTimeout)
		defer cancel()
		if _, err := q.Execute(rctx, init); err != nil {
			q.Log(fmt.Sprintf("background refresh of %s failed: %v", key, err), queryable.Warning)
			return nil, err
		}
		return nil, nil
	})
}

// freeze copies result into a form no caller holds. Structured results are
// kept as encoded JSON so every hit decodes its own copy.
func freeze(result any) (any, error) {
	switch v := result.(type) {
	case string:
		return v, nil
	case []byte:
		return bytes.Clone(v), nil
	case http.Header:
		return v.Clone(), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// thaw returns a copy of a stored value that the caller may mutate
func thaw(value any) any {
	switch v := value.(type) {
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil
		}
		return out
	case []byte:
		return bytes.Clone(v)
	case http.Header:
		return v.Clone()
	}
	return value
}

// cacheable reports whether the call may use the cache and strips the cache
// control headers from init.
func cacheable(init *queryable.Init) bool {
	always := popHeader(init.Headers, CacheAlwaysHeader)
	never := popHeader(init.Headers, CacheNeverHeader)
	if never {
		return false
	}
	return always || strings.EqualFold(init.Method, http.MethodGet)
}

func popHeader(headers map[string]string, name string) bool {
	found := false
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
			found = true
		}
	}
	return found
}
