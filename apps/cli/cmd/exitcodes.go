package cmd

// Exit codes for the quiver CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitRequestFailure indicates the send resolved with a failure
	// response (transport error or render failure)
	ExitRequestFailure = 1

	// ExitSchemaFailure indicates the response violated the schema
	ExitSchemaFailure = 2

	// ExitConfigError indicates a database or configuration error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
