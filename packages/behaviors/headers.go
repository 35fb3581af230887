package behaviors

import (
	"context"
	"fmt"
	"maps"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

// Version is reported in the User-Agent set by DefaultHeaders.
var Version = "dev"

// DefaultRequestIDHeader carries the call ID when RequestID is used without
// an explicit header name.
const DefaultRequestIDHeader = "client-request-id"

//go:generate mockgen -destination=mock/tokensource.go -package=mock . TokenSource

// TokenSource supplies bearer tokens per call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// BearerToken sets the Authorization header to "Bearer <token>".
func BearerToken(token string) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Auth.Add(func(ctx context.Context, url string, init *queryable.Init) (string, error) {
			init.Headers["Authorization"] = "Bearer " + token
			return url, nil
		})
	}
}

// BearerTokenSource is like BearerToken with the token fetched from src on
// every call.
func BearerTokenSource(src TokenSource) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Auth.Add(func(ctx context.Context, url string, init *queryable.Init) (string, error) {
			token, err := src.Token(ctx)
			if err != nil {
				return "", fmt.Errorf("fetching bearer token: %w", err)
			}
			init.Headers["Authorization"] = "Bearer " + token
			return url, nil
		})
	}
}

// InjectHeaders copies headers into every request. Keys are used verbatim.
// With prepend set the observer runs ahead of those already registered.
func InjectHeaders(headers map[string]string, prepend ...bool) queryable.Behavior {
	headers = maps.Clone(headers)
	return func(q *queryable.Queryable) {
		observer := func(ctx context.Context, url string, init *queryable.Init, result any) (string, any, error) {
			for k, v := range headers {
				init.Headers[k] = v
			}
			return url, result, nil
		}
		if len(prepend) > 0 && prepend[0] {
			q.On.Pre.Prepend(observer)
			return
		}
		q.On.Pre.Add(observer)
	}
}

// UserAgent is the User-Agent value sent by DefaultHeaders.
func UserAgent() string {
	return "hitquery/" + Version
}

// DefaultHeaders injects a hitquery User-Agent and a JSON Accept header.
// Entries in overrides win.
func DefaultHeaders(overrides map[string]string) queryable.Behavior {
	headers := map[string]string{
		"User-Agent": UserAgent(),
		"Accept":     "application/json",
	}
	maps.Copy(headers, overrides)
	return InjectHeaders(headers)
}

// RequestID sends the call ID in header, client-request-id by default.
func RequestID(header ...string) queryable.Behavior {
	name := DefaultRequestIDHeader
	if len(header) > 0 && header[0] != "" {
		name = header[0]
	}
	return func(q *queryable.Queryable) {
		q.On.Pre.Add(func(ctx context.Context, url string, init *queryable.Init, result any) (string, any, error) {
			if call := queryable.CallFrom(ctx); call != nil {
				init.Headers[name] = call.ID
			}
			return url, result, nil
		})
	}
}
