package cmd

import (
	"io"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/rs/zerolog"
)

// newLogger builds the console logger used for pipeline messages
func newLogger(w io.Writer, noColor bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// logLevel resolves the pipeline log level; -v raises it to info and -vv to
// verbose, otherwise the configured level applies.
func logLevel(verbosity int, configured string) queryable.LogLevel {
	switch {
	case verbosity >= 2:
		return queryable.Verbose
	case verbosity == 1:
		return queryable.Info
	}
	level, _ := queryable.ParseLogLevel(configured)
	return level
}
