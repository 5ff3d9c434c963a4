// Package logging provides structured logging utilities for the jared
// assistant.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "orchestrate")
//	logger.Info("run finished",
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("message fetched",
//	    logging.UserHash(msg.From))
//
// # Security Considerations
//
// Mailbox content and addresses are PII:
//   - Addresses are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens are never logged directly
package logging
