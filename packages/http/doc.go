// Package http provides the network client behind hitquery's default send.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts
//   - Redirect handling
//   - Default headers applied to every request
//   - Fully buffered responses that can be replayed as *net/http.Response
package http
