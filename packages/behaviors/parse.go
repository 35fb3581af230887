package behaviors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	hqhttp "github.com/abdul-hamid-achik/hitquery/packages/http"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

type bodyKey struct{}

// readBody returns the response body, buffering it on the call so several
// parsers can read it.
func readBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	call := queryable.CallFrom(ctx)
	if call != nil {
		if b, ok := call.Value(bodyKey{}); ok {
			return b.([]byte), nil
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, hqhttp.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if call != nil {
		call.Set(bodyKey{}, body)
	}
	return body, nil
}

// ThrowErrors fails calls whose response status is outside the 2xx range
// with *queryable.HTTPRequestError. It runs ahead of other parsers.
func ThrowErrors() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Parse.Prepend(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			if resp == nil || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
				return result, nil
			}
			body, _ := readBody(ctx, resp)
			return nil, &queryable.HTTPRequestError{
				Status:     resp.StatusCode,
				StatusText: statusText(resp),
				URL:        url,
				Body:       string(body),
				Response:   resp,
			}
		})
	}
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// DefaultParse combines ThrowErrors and JSONParse.
func DefaultParse() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.Using(ThrowErrors(), JSONParse())
	}
}

// JSONParse decodes the body as JSON. A 204 or an empty body yields an
// empty map.
func JSONParse() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			return parseJSON(ctx, resp)
		})
	}
}

func parseJSON(ctx context.Context, resp *http.Response) (any, error) {
	if resp == nil || resp.StatusCode == http.StatusNoContent {
		return map[string]any{}, nil
	}
	body, err := readBody(ctx, resp)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("parsing JSON response: %w", err)
	}
	return v, nil
}

// TextParse returns the body as a string.
func TextParse() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			body, err := readBody(ctx, resp)
			if err != nil {
				return nil, err
			}
			return string(body), nil
		})
	}
}

// BytesParse returns the raw body.
func BytesParse() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			body, err := readBody(ctx, resp)
			if err != nil {
				return nil, err
			}
			if body == nil {
				body = []byte{}
			}
			return body, nil
		})
	}
}

// HeaderParse returns the response headers as an http.Header.
func HeaderParse() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			if resp == nil {
				return http.Header{}, nil
			}
			return resp.Header.Clone(), nil
		})
	}
}

// JSONHeaderParse returns {"data": <decoded body>, "headers": <flattened headers>}.
func JSONHeaderParse() queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			data, err := parseJSON(ctx, resp)
			if err != nil {
				return nil, err
			}
			headers := map[string]any{}
			if resp != nil {
				for k := range resp.Header {
					headers[k] = resp.Header.Get(k)
				}
			}
			return map[string]any{"data": data, "headers": headers}, nil
		})
	}
}
