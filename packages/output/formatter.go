package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/metrics"
)

// CallResult is the outcome of one queryable call
type CallResult struct {
	Method   string
	URL      string
	Result   any
	Err      error
	Duration time.Duration
}

// Formatter renders call results
type Formatter interface {
	FormatCall(c *CallResult)
	FormatSummary(s *metrics.Summary)
	Flush() error
}

// New returns the formatter registered under name
func New(name string, w io.Writer, verbose, noColor, raw bool) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor), WithRaw(raw)), nil
	case "json":
		return NewJSONFormatter(WithJSONWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected console or json)", name)
	}
}
