// Package logger provides the structured logging layer for consentgate.
//
// It wraps a zap singleton behind three access paths:
//
//   - logger.L() / logger.Named(...) for process-level logging (main, wiring)
//   - logger.From(ctx) for request-scoped logging (handlers, services)
//   - typed field constructors (logger.UserID, logger.Capability, ...) so
//     field names stay consistent across the codebase
//
// The HTTP logging middleware injects a scoped logger (request_id, method,
// path) into the request context; everything below the middleware should use
// From(ctx) and add layer/op fields.
package logger
