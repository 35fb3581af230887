package behaviors

import (
	"context"
	"net/http"
	"testing"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrowErrors(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com/missing").Using(DefaultParse())
	send.install(q, func(int32) *http.Response {
		return response(http.StatusNotFound, `{"error":"nope"}`)
	})

	_, err := q.Get(context.Background())

	var httpErr *queryable.HTTPRequestError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "Not Found", httpErr.StatusText)
	assert.Equal(t, "https://example.com/missing", httpErr.URL)
	assert.Equal(t, `{"error":"nope"}`, httpErr.Body)
	assert.Equal(t, "HTTPRequestError", httpErr.Name())
}

func TestThrowErrors_RunsBeforeOtherParsers(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(TextParse(), ThrowErrors())
	send.install(q, func(int32) *http.Response {
		return response(http.StatusInternalServerError, "broken")
	})

	_, err := q.Get(context.Background())

	assert.True(t, queryable.IsHTTPRequestError(err))
}

func TestJSONParse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   any
	}{
		{name: "object", status: http.StatusOK, body: `{"a":1}`, want: map[string]any{"a": float64(1)}},
		{name: "array", status: http.StatusOK, body: `[1,2]`, want: []any{float64(1), float64(2)}},
		{name: "no content", status: http.StatusNoContent, body: "", want: map[string]any{}},
		{name: "empty body", status: http.StatusOK, body: "  ", want: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var send fakeSend
			q := queryable.New("https://example.com").Using(DefaultParse())
			send.install(q, func(int32) *http.Response { return response(tt.status, tt.body) })

			result, err := q.Get(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestJSONParse_InvalidBody(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(JSONParse())
	send.install(q, func(int32) *http.Response { return response(http.StatusOK, "<html>") })

	_, err := q.Get(context.Background())

	assert.ErrorContains(t, err, "parsing JSON response")
}

func TestTextAndBytesParse(t *testing.T) {
	var send fakeSend
	text := queryable.New("https://example.com").Using(TextParse())
	send.install(text, func(int32) *http.Response { return response(http.StatusOK, "hello") })

	result, err := text.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", result)

	raw := queryable.New("https://example.com").Using(BytesParse())
	send.install(raw, func(int32) *http.Response { return response(http.StatusOK, "hello") })

	result, err = raw.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), result)
}

func TestHeaderParse(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(HeaderParse())
	send.install(q, func(int32) *http.Response {
		return response(http.StatusOK, "", "ETag", `"v1"`)
	})

	result, err := q.Get(context.Background())

	require.NoError(t, err)
	headers, ok := result.(http.Header)
	require.True(t, ok)
	assert.Equal(t, `"v1"`, headers.Get("ETag"))
}

func TestJSONHeaderParse(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(JSONHeaderParse())
	send.install(q, func(int32) *http.Response {
		return response(http.StatusOK, `{"id":7}`, "X-Total", "1")
	})

	result, err := q.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"data":    map[string]any{"id": float64(7)},
		"headers": map[string]any{"X-Total": "1"},
	}, result)
}

func TestSelect(t *testing.T) {
	body := `{"items":[{"id":1,"tags":["a","b"]},{"id":2}],"count":2}`

	tests := []struct {
		name string
		path string
		want any
	}{
		{name: "field", path: "count", want: float64(2)},
		{name: "dot index", path: "items.1.id", want: float64(2)},
		{name: "bracket index", path: "items[0].tags[1]", want: "b"},
		{name: "jsonpath prefix", path: "$.items[0].id", want: float64(1)},
		{name: "missing", path: "nope", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var send fakeSend
			q := queryable.New("https://example.com").Using(ThrowErrors(), Select(tt.path))
			send.install(q, jsonResponse(body))

			result, err := q.Get(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestSelect_NotJSON(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(Select("a"))
	send.install(q, func(int32) *http.Response { return response(http.StatusOK, "plain text") })

	_, err := q.Get(context.Background())

	assert.ErrorContains(t, err, "not JSON")
}

const userSchema = `{
	"type": "object",
	"required": ["id", "name"],
	"properties": {
		"id": {"type": "integer"},
		"name": {"type": "string"}
	}
}`

func TestValidateSchema(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(ValidateSchema([]byte(userSchema)), JSONParse())
	send.install(q, jsonResponse(`{"id":1,"name":"ada"}`))

	result, err := q.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "ada"}, result)
}

func TestValidateSchema_Mismatch(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(JSONParse(), ValidateSchema([]byte(userSchema)))
	send.install(q, jsonResponse(`{"id":"one"}`))

	_, err := q.Get(context.Background())

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "https://example.com", schemaErr.URL)
	assert.Len(t, schemaErr.Errors, 2)
}

func TestValidateSchema_InvalidSchema(t *testing.T) {
	var send fakeSend
	q := queryable.New("https://example.com").Using(ValidateSchema([]byte(`{"type":`)))
	send.install(q, jsonResponse(`{}`))

	_, err := q.Get(context.Background())

	assert.ErrorContains(t, err, "loading schema")
}
