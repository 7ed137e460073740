// Package cli implements the interactive command loop of the auth client:
// register, login, me, health and logout against the HTTP API.
package cli
