package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (no workspace, no snapshot, invalid config)
	ExitDataError   = 3 // Data error (unreadable CSV, corrupt snapshot)
	ExitNotFound    = 4 // Facility, region or specialty not found
	ExitNeo4jError  = 5 // Neo4j unreachable or rejected the export
)
