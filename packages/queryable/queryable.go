package queryable

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// Init holds the options of a single request, in the shape of fetch's init
// object. The pipeline guarantees Headers is non-nil before any observer runs.
type Init struct {
	Method  string
	Headers map[string]string
	Body    []byte

	// Signal cancels the dispatch when it is done.
	Signal context.Context

	// Timeout bounds the dispatch when positive.
	Timeout time.Duration
}

// Clone returns a copy of i with its own header map.
func (i *Init) Clone() *Init {
	if i == nil {
		return &Init{Headers: make(map[string]string)}
	}
	c := *i
	c.Headers = make(map[string]string, len(i.Headers))
	for k, v := range i.Headers {
		c.Headers[k] = v
	}
	return &c
}

// Behavior configures a queryable, usually by registering observers on its
// moments.
type Behavior func(q *Queryable)

// Queryable is an invokable request targeting a URL. Behaviors attached with
// Using shape how it is built, dispatched and parsed.
//
// Query parameters and behaviors should be configured before the queryable
// is executed concurrently.
type Queryable struct {
	On *Hooks

	url      string
	query    url.Values
	logLevel atomic.Int32
}

// New creates a queryable for base joined with the optional path segments.
func New(base string, path ...string) *Queryable {
	q := &Queryable{
		On:    &Hooks{},
		url:   joinURL(base, path...),
		query: make(url.Values),
	}
	q.logLevel.Store(int32(DefaultLogLevel))
	return q
}

// Using applies behaviors in order and returns q.
func (q *Queryable) Using(behaviors ...Behavior) *Queryable {
	for _, b := range behaviors {
		if b != nil {
			b(q)
		}
	}
	return q
}

// Child returns a queryable below q's URL that inherits copies of q's
// observers, query parameters and log level.
func (q *Queryable) Child(path ...string) *Queryable {
	c := New(q.url, path...)
	c.On = q.On.clone()
	for k, v := range q.query {
		c.query[k] = append([]string(nil), v...)
	}
	c.logLevel.Store(q.logLevel.Load())
	return c
}

// URL returns the target URL without query parameters.
func (q *Queryable) URL() string {
	return q.url
}

// Query returns the query parameters appended to every request.
func (q *Queryable) Query() url.Values {
	return q.query
}

// RequestURL returns the URL with the encoded query parameters.
func (q *Queryable) RequestURL() string {
	if len(q.query) == 0 {
		return q.url
	}
	sep := "?"
	if strings.Contains(q.url, "?") {
		sep = "&"
	}
	return q.url + sep + q.query.Encode()
}

// SetLogLevel sets the minimum level emitted on the Log moment.
func (q *Queryable) SetLogLevel(level LogLevel) {
	q.logLevel.Store(int32(level))
}

// LogLevel returns the minimum level emitted on the Log moment.
func (q *Queryable) LogLevel() LogLevel {
	return LogLevel(q.logLevel.Load())
}

// Log emits msg to the Log observers when level is at or above the
// queryable's log level.
func (q *Queryable) Log(msg string, level LogLevel) {
	if level == Off || level < q.LogLevel() {
		return
	}
	for _, f := range q.On.Log.Observers() {
		f(msg, level)
	}
}

// Get executes a GET request.
func (q *Queryable) Get(ctx context.Context) (any, error) {
	return q.Execute(ctx, &Init{Method: http.MethodGet})
}

// Post executes init as a POST request.
func (q *Queryable) Post(ctx context.Context, init *Init) (any, error) {
	return q.Execute(ctx, withMethod(init, http.MethodPost))
}

// Put executes init as a PUT request.
func (q *Queryable) Put(ctx context.Context, init *Init) (any, error) {
	return q.Execute(ctx, withMethod(init, http.MethodPut))
}

// Patch executes init as a PATCH request.
func (q *Queryable) Patch(ctx context.Context, init *Init) (any, error) {
	return q.Execute(ctx, withMethod(init, http.MethodPatch))
}

// Delete executes init as a DELETE request.
func (q *Queryable) Delete(ctx context.Context, init *Init) (any, error) {
	return q.Execute(ctx, withMethod(init, http.MethodDelete))
}

// Execute runs the timeline pre, auth, send, parse, post and returns the
// result. A result produced by a pre observer skips the remaining stages.
// Errors stop the timeline, are broadcast on the Error moment and returned.
//
// When no parse observer is registered the raw response is returned and the
// caller owns its body.
func (q *Queryable) Execute(ctx context.Context, init *Init) (result any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	init = init.Clone()
	if init.Method == "" {
		init.Method = http.MethodGet
	}

	call := newCall(q, init.Method)
	ctx = withCall(ctx, call)
	requestURL := q.RequestURL()

	q.Log(fmt.Sprintf("[%s] beginning %s request (%s)", call.ID, init.Method, requestURL), Info)

	defer func() {
		if err != nil {
			q.Log(fmt.Sprintf("[%s] request failed: %v", call.ID, err), Error)
			for _, f := range q.On.Error.Observers() {
				f(ctx, err)
			}
			return
		}
		for _, f := range q.On.Data.Observers() {
			f(ctx, result)
		}
		q.Log(fmt.Sprintf("[%s] completed in %s", call.ID, time.Since(call.Started)), Verbose)
	}()

	requestURL, result, err = q.emitPre(ctx, requestURL, init)
	if err != nil {
		return nil, err
	}
	if result != nil {
		q.Log(fmt.Sprintf("[%s] result returned from pre, skipping send", call.ID), Verbose)
		return result, nil
	}

	sendCtx, release := dispatchContext(ctx, init)
	defer release()

	for _, f := range q.On.Auth.Observers() {
		if requestURL, err = f(sendCtx, requestURL, init); err != nil {
			if abortErr := checkAbort(sendCtx); abortErr != nil {
				return nil, abortErr
			}
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	resp, err := q.emitSend(sendCtx, requestURL, init)
	if err != nil {
		return nil, err
	}

	parsers := q.On.Parse.Observers()
	if len(parsers) == 0 {
		if resp != nil {
			result = resp
		}
	} else {
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close()
		}
		for _, f := range parsers {
			if result, err = f(ctx, requestURL, resp, result); err != nil {
				return nil, err
			}
		}
	}

	for _, f := range q.On.Post.Observers() {
		if result, err = f(ctx, requestURL, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (q *Queryable) emitPre(ctx context.Context, requestURL string, init *Init) (string, any, error) {
	var (
		result any
		err    error
	)
	for _, f := range q.On.Pre.Observers() {
		if requestURL, result, err = f(ctx, requestURL, init, result); err != nil {
			return "", nil, err
		}
	}
	return requestURL, result, nil
}

func (q *Queryable) emitSend(ctx context.Context, requestURL string, init *Init) (*http.Response, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	senders := q.On.Send.Observers()
	if len(senders) == 0 {
		return nil, ErrNoSend
	}

	q.Log(fmt.Sprintf("[%s] sending %s %s", callID(ctx), init.Method, requestURL), Verbose)

	resp, err := senders[0](ctx, requestURL, init)
	if err != nil {
		if abortErr := checkAbort(ctx); abortErr != nil {
			return nil, abortErr
		}
		return nil, err
	}
	return resp, nil
}

// SignalContext returns ctx cancelled when init.Signal is. Pre observers
// that block use it; later stages already receive a joined context. The
// returned func must be called to release resources.
func SignalContext(ctx context.Context, init *Init) (context.Context, func()) {
	if init == nil || init.Signal == nil {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	signal := init.Signal
	if signal.Err() != nil {
		cancel(context.Cause(signal))
	}
	stop := context.AfterFunc(signal, func() {
		cancel(context.Cause(signal))
	})
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

// dispatchContext derives the context handed to auth and send observers
// from the call context, init.Signal and init.Timeout.
func dispatchContext(ctx context.Context, init *Init) (context.Context, func()) {
	ctx, releaseSignal := SignalContext(ctx, init)
	if init.Timeout <= 0 {
		return ctx, releaseSignal
	}
	ctx, cancel := context.WithTimeout(ctx, init.Timeout)
	return ctx, func() {
		cancel()
		releaseSignal()
	}
}

func checkAbort(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return &AbortError{Cause: context.Cause(ctx)}
}

func callID(ctx context.Context) string {
	if c := CallFrom(ctx); c != nil {
		return c.ID
	}
	return "-"
}

func withMethod(init *Init, method string) *Init {
	init = init.Clone()
	init.Method = method
	return init
}

func joinURL(base string, path ...string) string {
	u := base
	for _, p := range path {
		if p == "" {
			continue
		}
		u = strings.TrimRight(u, "/") + "/" + strings.TrimLeft(p, "/")
	}
	return u
}
