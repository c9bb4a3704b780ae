// Package middleware provides HTTP middleware for the stock ledger API.
package middleware

// Gin context keys shared with the handlers.
const (
	ContextKeyUserID           = "user_id"
	ContextKeyRequestID        = "request_id"
	ContextKeyTraceID          = "trace_id"
	ContextKeyScope            = "warehouse_scope"
	ContextKeyIdempotencyKey   = "idempotency_key"
	ContextKeyIdempotencyStore = "idempotency_store"
)
