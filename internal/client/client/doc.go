// Package client is a small HTTP client for the auth service API.
package client
