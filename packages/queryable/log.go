package queryable

import "strings"

// LogLevel orders log messages by severity.
type LogLevel int

const (
	Verbose LogLevel = iota
	Info
	Warning
	Error
	Off
)

// DefaultLogLevel is the level new queryables start with.
const DefaultLogLevel = Warning

func (l LogLevel) String() string {
	switch l {
	case Verbose:
		return "verbose"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "off"
	}
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names map to
// DefaultLogLevel and ok is false.
func ParseLogLevel(s string) (level LogLevel, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "debug", "trace":
		return Verbose, true
	case "info":
		return Info, true
	case "warning", "warn":
		return Warning, true
	case "error":
		return Error, true
	case "off", "none":
		return Off, true
	}
	return DefaultLogLevel, false
}
