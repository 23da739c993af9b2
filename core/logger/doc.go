// Package logger provides the process-wide logging sink based on Zap.
//
// Records are written to standard output and, when configured, appended to a
// log file. The file is opened in append mode and is never truncated or
// rotated. Writes to both destinations share one lock, so a shutdown record
// logged from the main goroutine never interleaves with a record written by
// an in-flight pass.
//
// # Formats
//
//   - plain: "[2006-01-02 15:04:05] [INFO] message", structured fields dropped
//   - console: Zap's development console encoding
//   - json: one JSON object per record, structured fields included
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info", Format: "plain", File: "sync.log"})
//	defer log.Sync()
//	log.Info("Starting synchronization...")
package logger
