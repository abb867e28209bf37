package auth

import "github.com/hubgate/hubgate/pkg/observability"

// AuditLogger records authentication and account-management events as
// structured log entries. Events carry identities and outcomes only;
// tokens, ciphertexts, and key material never reach the logger.
//
// A nil AuditLogger is valid and drops all events, which keeps strategy
// construction simple in tests.
type AuditLogger struct {
	log *observability.Logger
}

// NewAuditLogger creates an audit logger on top of the structured logger.
func NewAuditLogger(log *observability.Logger) *AuditLogger {
	return &AuditLogger{log: log}
}

// LoginSucceeded records a completed login.
func (a *AuditLogger) LoginSucceeded(strategy, identity string) {
	if a == nil || a.log == nil {
		return
	}
	a.log.WithFields(map[string]interface{}{
		"event":    "login_succeeded",
		"strategy": strategy,
		"identity": identity,
	}).Info("login succeeded")
}

// LoginDenied records a rejected login attempt and the policy reason.
func (a *AuditLogger) LoginDenied(strategy, identity, reason string) {
	if a == nil || a.log == nil {
		return
	}
	a.log.WithFields(map[string]interface{}{
		"event":    "login_denied",
		"strategy": strategy,
		"identity": identity,
		"reason":   reason,
	}).Warn("login denied")
}

// CredentialDiscarded records that a stored provider credential failed
// its integrity check and was treated as absent. The ciphertext itself is
// deliberately not included.
func (a *AuditLogger) CredentialDiscarded(identity string) {
	if a == nil || a.log == nil {
		return
	}
	a.log.WithFields(map[string]interface{}{
		"event":    "credential_discarded",
		"identity": identity,
	}).Warn("stored provider credential failed integrity check")
}

// AccountChanged records an administrative change to an account.
func (a *AuditLogger) AccountChanged(actor, subject, action string) {
	if a == nil || a.log == nil {
		return
	}
	a.log.WithFields(map[string]interface{}{
		"event":   "account_changed",
		"actor":   actor,
		"subject": subject,
		"action":  action,
	}).Info("account changed")
}
