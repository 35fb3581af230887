package output

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/metrics"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary *JSONSummary `json:"summary,omitempty"`
	Calls   []JSONCall   `json:"calls"`
	Time    string       `json:"time"`
}

// JSONSummary represents the latency summary
type JSONSummary struct {
	Total   int64   `json:"total"`
	Success int64   `json:"success"`
	Errors  int64   `json:"errors"`
	Aborted int64   `json:"aborted"`
	P50     float64 `json:"p50Ms"`
	P95     float64 `json:"p95Ms"`
	P99     float64 `json:"p99Ms"`
}

// JSONCall represents a single call
type JSONCall struct {
	Method   string     `json:"method"`
	URL      string     `json:"url"`
	Duration float64    `json:"durationMs"`
	Result   any        `json:"result,omitempty"`
	Error    *JSONError `json:"error,omitempty"`
}

// JSONError describes a failed call
type JSONError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// JSONFormatter formats call results as JSON
type JSONFormatter struct {
	writer  io.Writer
	calls   []JSONCall
	summary *JSONSummary
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		calls:  make([]JSONCall, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithJSONWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatCall(c *CallResult) {
	call := JSONCall{
		Method:   c.Method,
		URL:      c.URL,
		Duration: ms(c.Duration),
	}
	if c.Err != nil {
		call.Error = jsonError(c.Err)
	} else {
		call.Result = jsonValue(c.Result)
	}
	f.calls = append(f.calls, call)
}

func (f *JSONFormatter) FormatSummary(s *metrics.Summary) {
	if s == nil {
		return
	}
	f.summary = &JSONSummary{
		Total:   s.Count,
		Success: s.Success,
		Errors:  s.Errors,
		Aborted: s.Aborted,
		P50:     ms(s.P50),
		P95:     ms(s.P95),
		P99:     ms(s.P99),
	}
}

// Flush writes everything collected so far and resets the formatter
func (f *JSONFormatter) Flush() error {
	out := JSONOutput{
		Summary: f.summary,
		Calls:   f.calls,
		Time:    time.Now().Format(time.RFC3339),
	}
	f.calls = make([]JSONCall, 0)
	f.summary = nil

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func jsonError(err error) *JSONError {
	e := &JSONError{Name: "Error", Message: err.Error()}
	var httpErr *queryable.HTTPRequestError
	var abortErr *queryable.AbortError
	switch {
	case errors.As(err, &httpErr):
		e.Name = httpErr.Name()
		e.Status = httpErr.Status
	case errors.As(err, &abortErr):
		e.Name = abortErr.Name()
	}
	return e
}

// jsonValue makes results without a JSON form printable
func jsonValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case *http.Response:
		return val.Status
	}
	return v
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
