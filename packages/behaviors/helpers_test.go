package behaviors

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	hqhttp "github.com/abdul-hamid-achik/hitquery/packages/http"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

// fakeSend replaces the send observer with one that records each dispatch
// and answers with the response built by respond.
type fakeSend struct {
	count atomic.Int32

	mu    sync.Mutex
	inits []*queryable.Init
	urls  []string
}

func (f *fakeSend) install(q *queryable.Queryable, respond func(n int32) *http.Response) {
	q.On.Send.Replace(func(ctx context.Context, url string, init *queryable.Init) (*http.Response, error) {
		n := f.count.Add(1)
		f.mu.Lock()
		f.inits = append(f.inits, init.Clone())
		f.urls = append(f.urls, url)
		f.mu.Unlock()
		return respond(n), nil
	})
}

func (f *fakeSend) lastInit() *queryable.Init {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inits) == 0 {
		return nil
	}
	return f.inits[len(f.inits)-1]
}

func response(status int, body string, headers ...string) *http.Response {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	return &http.Response{
		StatusCode: status,
		Status:     strconv.Itoa(status) + " " + http.StatusText(status),
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func jsonResponse(body string) func(int32) *http.Response {
	return func(int32) *http.Response {
		return response(http.StatusOK, body, "Content-Type", "application/json")
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func withTransport(rt http.RoundTripper) hqhttp.ClientOption {
	return hqhttp.WithTransport(rt)
}
