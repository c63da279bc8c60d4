// Package cli provides the shared plumbing of the intercept commands.
//
// # Errors
//
// Commands return typed errors so that the entry point can decide how to
// report them and which exit code to use:
//
//	return cli.NewConfigError("report.format", "unsupported format")
//	return cli.NewCommandError("audit", err)
//	return cli.Exit(report.ExitCode, nil)
//
// ExitCodeOf maps any returned error to a process exit code. An ExitError
// carries its own code; every other error maps to ExitFailure.
//
// # Signals
//
// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM. A second signal calls the supplied force function, which the
// entry point uses to exit immediately.
//
// # Output
//
// OpenOutput returns stdout or a file for the report, and NewFormatter
// writes command results such as validation issues in text or JSON.
package cli
