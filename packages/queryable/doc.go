// Package queryable implements the request pipeline used by hitquery.
//
// A Queryable targets a URL and runs a fixed timeline of moments on every
// call:
//   - Pre: inspect or rewrite the request, or return a result early
//   - Auth: apply credentials
//   - Send: dispatch the request (single replaceable slot)
//   - Parse: turn the response into a result
//   - Post: post-process the result
//   - Data / Error: broadcast the outcome
//
// Behaviors attached with Using register observers on these moments. Tests
// replace the Send observer to intercept requests without network I/O:
//
//	q := queryable.New("https://example.com").Using(behaviors.BearerToken("t"))
//	q.On.Send.Replace(func(ctx context.Context, url string, init *queryable.Init) (*http.Response, error) {
//		return nil, nil
//	})
//	_, err := q.Get(ctx)
package queryable
