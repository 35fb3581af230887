package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"maps"
	"net/http"
	neturl "net/url"
	"time"
)

const (
	// DefaultTimeout bounds a whole exchange when no timeout option is given
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	// MaxBodySize caps how much of a response body is buffered
	MaxBodySize = 32 << 20
)

// Client performs the network exchange behind the Fetch behaviors. It is
// safe for concurrent use once built.
type Client struct {
	httpClient     *http.Client
	defaultHeaders map[string]string
}

type clientSettings struct {
	transport      http.RoundTripper
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
}

type ClientOption func(*clientSettings)

func NewClient(opts ...ClientOption) *Client {
	s := &clientSettings{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	transport := s.transport
	if transport == nil {
		transport = s.buildTransport()
	}

	return &Client{
		httpClient: &http.Client{
			Transport:     transport,
			Timeout:       s.timeout,
			CheckRedirect: s.checkRedirect,
		},
		defaultHeaders: s.defaultHeaders,
	}
}

func (s *clientSettings) buildTransport() *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	if !s.validateSSL {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if s.proxyURL != "" {
		if u, err := neturl.Parse(s.proxyURL); err == nil {
			t.Proxy = http.ProxyURL(u)
		}
	}
	return t
}

func (s *clientSettings) checkRedirect(_ *http.Request, via []*http.Request) error {
	if !s.followRedirect || len(via) >= s.maxRedirects {
		return http.ErrUseLastResponse
	}
	return nil
}

func WithTimeout(d time.Duration) ClientOption {
	return func(s *clientSettings) {
		s.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(s *clientSettings) {
		s.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(s *clientSettings) {
		s.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(s *clientSettings) {
		s.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets headers sent on every request unless the request
// sets the same key
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(s *clientSettings) {
		maps.Copy(s.defaultHeaders, headers)
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(s *clientSettings) {
		s.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(s *clientSettings) {
		s.proxyURL = proxyURL
	}
}

// WithTransport replaces the round tripper; TLS and proxy options are then ignored
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(s *clientSettings) {
		s.transport = rt
	}
}

// Do sends req and buffers the response. The context bounds the whole
// exchange including reading the body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	requestURL := req.BuildURL()
	if err := ValidateURL(requestURL); err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, body)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(httpReq, req.Headers)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return newResponse(httpResp, respBody, requestURL, time.Since(start)), nil
}

// applyHeaders writes defaults first. Request headers keep the caller's
// key spelling.
func (c *Client) applyHeaders(httpReq *http.Request, headers map[string]string) {
	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		if canonical := http.CanonicalHeaderKey(k); canonical != k {
			httpReq.Header.Del(canonical)
		}
		httpReq.Header[k] = []string{v}
	}
}

func newResponse(httpResp *http.Response, body []byte, requestURL string, d time.Duration) *Response {
	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		Body:       body,
		Duration:   d,
		URL:        requestURL,
	}
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
