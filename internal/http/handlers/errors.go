// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The codes give clients a stable, machine-readable taxonomy
// that supplements the human-readable messages: generic codes mirror HTTP
// status semantics, domain codes carry business conditions that a status
// alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInsufficientCredits = "insufficient_credits"
	ErrCodeMissingCredentials  = "missing_credentials"
	ErrCodeIllegalTransition   = "illegal_transition"
	ErrCodeCreateFailed        = "create_failed"
	ErrCodeListFailed          = "list_failed"
	ErrCodeLaunchFailed        = "launch_failed"
	ErrCodeMethodNotAllowed    = "method_not_allowed"
)
