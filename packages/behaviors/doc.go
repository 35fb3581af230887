// Package behaviors provides reusable middleware for queryables.
//
// A behavior is attached with Using and registers observers on the
// queryable's moments:
//
//	q := queryable.New("https://api.example.com", "users").Using(
//		behaviors.DefaultHeaders(nil),
//		behaviors.BearerToken(token),
//		behaviors.Caching(),
//		behaviors.DefaultParse(),
//		behaviors.Fetch(),
//	)
//
// Header, authentication, timeout and caching behaviors act before dispatch.
// Parsers turn the response into a result. Fetch and FetchWithRetry perform
// the network call.
package behaviors
