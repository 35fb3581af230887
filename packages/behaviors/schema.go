package behaviors

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaError reports a response body that does not match a JSON schema.
type SchemaError struct {
	URL    string
	Errors []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed for %s: %s", e.URL, strings.Join(e.Errors, "; "))
}

// ValidateSchema checks the JSON body against schema and fails the call with
// *SchemaError when it does not match. The result is left unchanged.
func ValidateSchema(schema []byte) queryable.Behavior {
	compiled, compileErr := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	return func(q *queryable.Queryable) {
		q.On.Parse.Add(func(ctx context.Context, url string, resp *http.Response, result any) (any, error) {
			if compileErr != nil {
				return nil, fmt.Errorf("loading schema: %w", compileErr)
			}
			body, err := readBody(ctx, resp)
			if err != nil {
				return nil, err
			}

			res, err := compiled.Validate(gojsonschema.NewBytesLoader(body))
			if err != nil {
				return nil, fmt.Errorf("schema validation error: %w", err)
			}
			if res.Valid() {
				return result, nil
			}

			errs := make([]string, 0, len(res.Errors()))
			for _, desc := range res.Errors() {
				errs = append(errs, desc.String())
			}
			return nil, &SchemaError{URL: url, Errors: errs}
		})
	}
}
