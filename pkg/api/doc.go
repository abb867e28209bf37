// Package api assembles the HTTP surface: health and metrics endpoints,
// the authentication flow, mode-gated user management, and repository
// browsing proxied through the provider.
package api
