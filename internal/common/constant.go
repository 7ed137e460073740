// Package common contains shared constants, sentinel errors and small helpers
// used by both the auth server and its client.
package common

const (
	// AuthorizationHeaderName carries the bearer token on HTTP requests.
	AuthorizationHeaderName = "Authorization"

	// BearerScheme is the authorization scheme prefix, including the trailing space.
	BearerScheme = "Bearer "

	// RequestIDHeaderName is echoed back on every response.
	RequestIDHeaderName = "X-Request-ID"
)
