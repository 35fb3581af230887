package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitquery/packages/metrics"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/fatih/color"
)

// formatValue renders a result for the terminal. JSON values are indented
// unless compact is set.
func formatValue(v any, compact bool) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case http.Header:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, strings.Join(val[k], ", "))
		}
		return strings.TrimSuffix(b.String(), "\n")
	case *http.Response:
		return val.Status
	}

	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	raw     bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithRaw prints bare results without status lines
func WithRaw(raw bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.raw = raw
	}
}

func (f *ConsoleFormatter) FormatCall(c *CallResult) {
	if f.raw {
		if c.Err != nil {
			fmt.Fprintf(f.writer, "%v\n", c.Err)
			return
		}
		fmt.Fprintln(f.writer, formatValue(c.Result, true))
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	timing := cyan(fmt.Sprintf("(%dms)", c.Duration.Milliseconds()))

	if c.Err != nil {
		var httpErr *queryable.HTTPRequestError
		switch {
		case queryable.IsAbort(c.Err):
			fmt.Fprintf(f.writer, "%s %s %s %s %s\n", yellow("-"), c.Method, c.URL, timing, yellow("aborted"))
		case errors.As(c.Err, &httpErr):
			fmt.Fprintf(f.writer, "%s %s %s %s %s\n", red("✗"), c.Method, c.URL, timing,
				red(fmt.Sprintf("[%d] %s", httpErr.Status, httpErr.StatusText)))
			if f.verbose && httpErr.Body != "" {
				fmt.Fprintf(f.writer, "    %s\n", httpErr.Body)
			}
			return
		default:
			fmt.Fprintf(f.writer, "%s %s %s %s\n", red("✗"), c.Method, c.URL, timing)
		}
		fmt.Fprintf(f.writer, "    %s\n", red(c.Err.Error()))
		return
	}

	fmt.Fprintf(f.writer, "%s %s %s %s\n", green("✓"), c.Method, c.URL, timing)
	if body := formatValue(c.Result, false); body != "" {
		fmt.Fprintln(f.writer, body)
	}
}

func (f *ConsoleFormatter) FormatSummary(s *metrics.Summary) {
	if s == nil || s.Count == 0 || f.raw {
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s ", bold("Calls:"))
	if s.Success > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d succeeded", s.Success)))
	}
	if failed := s.Errors - s.Aborted; failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if s.Aborted > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d aborted", s.Aborted)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Count)
	fmt.Fprintf(f.writer, "%s p50=%s p95=%s p99=%s min=%s max=%s\n",
		bold("Latency:"), s.P50, s.P95, s.P99, s.Min, s.Max)

	if f.verbose && len(s.Targets) > 1 {
		names := make([]string, 0, len(s.Targets))
		for name := range s.Targets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			t := s.Targets[name]
			fmt.Fprintf(f.writer, "  %s: %d calls, %d errors, p95=%s\n", name, t.Count, t.Errors, t.P95)
		}
	}
}

func (f *ConsoleFormatter) Flush() error {
	return nil
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitquery"), version)
}
