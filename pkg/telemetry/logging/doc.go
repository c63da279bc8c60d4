// Package logging builds the structured loggers used across intercept.
//
// Loggers are plain *slog.Logger values. New wraps the chosen slog handler
// (json or text) with a handler that:
//
//   - copies run and rule identifiers stored in the context onto every record
//   - redacts credentials from attribute values when redaction is enabled
//
// Redaction matters because intercept routinely handles secrets: scan rules
// match them in target files and assure-api rules carry credentials from the
// environment.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "run started") // includes run_id
package logging
