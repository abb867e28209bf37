// Package config loads and validates process configuration from
// HUBGATE_-prefixed environment variables. Validation is mode-aware:
// the credentials a deployment must supply depend on whether it runs
// single_user or multi_user and whether the OAuth flow is enabled.
package config
