package behaviors

import (
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/rs/zerolog"
)

// Logging writes the queryable's log messages to logger and sets its log
// level.
func Logging(logger zerolog.Logger, level queryable.LogLevel) queryable.Behavior {
	return func(q *queryable.Queryable) {
		q.SetLogLevel(level)
		logger := logger.With().Str("url", q.URL()).Logger()
		q.On.Log.Add(func(msg string, level queryable.LogLevel) {
			logger.WithLevel(zerologLevel(level)).Msg(msg)
		})
	}
}

func zerologLevel(level queryable.LogLevel) zerolog.Level {
	switch level {
	case queryable.Verbose:
		return zerolog.DebugLevel
	case queryable.Info:
		return zerolog.InfoLevel
	case queryable.Warning:
		return zerolog.WarnLevel
	case queryable.Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}
