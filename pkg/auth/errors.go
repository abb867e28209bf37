package auth

import "errors"

// Request-time authorization failures.
var (
	// ErrUnauthenticated indicates no usable credential was presented and
	// the current mode requires one.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the resolved role is insufficient.
	ErrForbidden = errors.New("insufficient role")
	// ErrForbiddenIdentity indicates the provider identity is not on the
	// single-user allow-list. Surfaced distinctly so operators can
	// diagnose misconfiguration.
	ErrForbiddenIdentity = errors.New("identity is not allowed for this deployment")
	// ErrAccountDeactivated indicates the matched account's active flag is
	// false. There is no self-service path to reactivate.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrOAuthStateMismatch indicates the callback state did not match the
	// anti-forgery value issued at the authorize step.
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
)
