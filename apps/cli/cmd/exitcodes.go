package cmd

// Exit codes for hitquery CLI
const (
	// ExitSuccess indicates every call succeeded
	ExitSuccess = 0

	// ExitRequestFailure indicates a call failed with an HTTP error status,
	// a schema mismatch or a parse error
	ExitRequestFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error or an aborted call
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
