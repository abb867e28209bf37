// Package middleware wires the authorization guard, request IDs, and
// panic recovery into gorilla/mux handler chains.
package middleware
