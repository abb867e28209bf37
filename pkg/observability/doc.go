// Package observability provides structured logging, Prometheus metrics,
// and health check endpoints for the Hubgate server.
//
// Logging uses stdlib slog with a JSON handler. Credential material is
// never passed to the logger; callers log identities and outcomes only.
//
// Metrics cover the HTTP surface, authentication attempts by strategy,
// session token verification results, and outbound OAuth provider calls.
package observability
