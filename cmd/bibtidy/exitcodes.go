package main

// Exit codes shared by all commands.
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (malformed config.yml, repo already initialized)
	ExitDataError     = 3 // Data error (malformed bibliography)
	ExitSnapshotError = 4 // Snapshot could not be created before mutation
	ExitWriteError    = 5 // Bibliography or document write failed
	ExitIndexStale    = 6 // Index cache does not match the current bibliography
)
