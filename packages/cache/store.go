package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"
)

// DefaultTTL is how long entries live when no expire function is given.
const DefaultTTL = 5 * time.Minute

// StoreKind names one of the built-in stores.
type StoreKind string

const (
	// StoreSession is the process-local memory store.
	StoreSession StoreKind = "session"
	// StoreLocal is the persistent sqlite store.
	StoreLocal StoreKind = "local"
)

// Entry is a cached value with its absolute expiration.
type Entry struct {
	Value      any
	Expiration time.Time
}

// Expired reports whether the entry is past its expiration at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.Expiration.IsZero() && !now.Before(e.Expiration)
}

// Store holds cache entries keyed by request identity.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Resolve returns the shared store for kind. An empty kind resolves to the
// session store.
func Resolve(kind StoreKind) (Store, error) {
	switch kind {
	case StoreSession, "":
		return Session(), nil
	case StoreLocal:
		return Local()
	default:
		return nil, fmt.Errorf("unknown cache store %q (expected %q or %q)", kind, StoreSession, StoreLocal)
	}
}

// DefaultKeyFactory derives a cache key from the request URL.
func DefaultKeyFactory(url string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(url))
	return "hq-" + strconv.FormatUint(h.Sum64(), 16)
}

// DefaultExpire returns an expiration DefaultTTL from now.
func DefaultExpire(string) time.Time {
	return time.Now().Add(DefaultTTL)
}
