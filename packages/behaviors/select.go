package behaviors

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/tidwall/gjson"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation turns "items[0].id" into gjson's "items.0.id".
func convertBracketNotation(path string) string {
	return strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
}

// Select narrows the result to the value at path in the JSON body. Paths use
// gjson syntax; bracket indexes such as items[0] are accepted. A missing
// path yields nil.
func Select(path string) queryable.Behavior {
	path = convertBracketNotation(strings.TrimPrefix(strings.TrimSpace(path), "$."))
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			body, err := readBody(ctx, resp)
			if err != nil {
				return nil, err
			}
			if !gjson.ValidBytes(body) {
				return nil, fmt.Errorf("select %q: response body is not JSON", path)
			}
			if path == "" {
				return gjson.ParseBytes(body).Value(), nil
			}
			value := gjson.GetBytes(body, path)
			if !value.Exists() {
				return nil, nil
			}
			return value.Value(), nil
		})
	}
}
