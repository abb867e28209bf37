// Package auth implements the authentication-strategy subsystem of the
// Hubgate server.
//
// # Operating modes
//
// The gateway runs in one of two modes, fixed at startup:
//
//	single_user - one operator; authentication optional
//	multi_user  - multiple tenants; authentication mandatory, role-scoped
//
// # Strategies
//
// Mode selection yields exactly one Strategy for the process lifetime:
//
//	NoAuthStrategy        - single_user, auth disabled. Every request acts
//	                        as a fixed owner principal.
//	PersonalOAuthStrategy - single_user, auth enabled. OAuth flow locked
//	                        to one configured provider identity.
//	TenantOAuthStrategy   - multi_user. OAuth flow with find-or-create
//	                        accounts, admin-on-first-login for the
//	                        configured admin identity, and vault-encrypted
//	                        provider tokens.
//
// # Authorization
//
// Guard.Require resolves the request principal through the active
// strategy and enforces role order (anonymous < user < admin) plus the
// account activation flag. Session credentials are stateless, so the
// activation re-check at the guard is what bounds the revocation window
// to the token TTL.
package auth
