package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Norrels/Upframer-auth/internal/client/client"
	"github.com/Norrels/Upframer-auth/internal/common"
)

// getSimpleText and getPassword are indirections swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for email, username and password and creates an account.
// A successful registration also logs the user in.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.client.Register(ctx, email, userName, password)
	if err != nil {
		a.report("Registration failed", err)
		return err
	}

	a.setSession(res)
	fmt.Fprintf(a.out, "Registered and logged in as %s\n", res.User.Username)
	return nil
}

// Login prompts for credentials and keeps the returned token for later calls.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.client.Login(ctx, email, password)
	if err != nil {
		a.report("Login failed", err)
		return err
	}

	a.setSession(res)
	fmt.Fprintf(a.out, "Logged in as %s\n", res.User.Username)
	return nil
}

// Me shows who the current token belongs to. An expired token ends the session.
func (a *App) Me(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return client.ErrUnauthorized
	}

	id, err := a.client.Me(ctx, a.token)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.clearSession()
			fmt.Fprintln(a.out, "Session expired, please log in again")
			return err
		}
		a.report("Request failed", err)
		return err
	}

	fmt.Fprintf(a.out, "User %s <%s>, token valid until %s\n", id.UserID, id.Email, id.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func (a *App) Health(ctx context.Context) error {
	if err := a.client.Health(ctx); err != nil {
		a.report("Server is not healthy", err)
		return err
	}
	fmt.Fprintln(a.out, "Server is up")
	return nil
}

// Logout forgets the token. Tokens are stateless, so nothing is sent to the server.
func (a *App) Logout(ctx context.Context) error {
	a.clearSession()
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) setSession(res *client.AuthResult) {
	a.token = res.Token
	a.userName = res.User.Username
}

func (a *App) clearSession() {
	a.token = ""
	a.userName = ""
}

func (a *App) report(what string, err error) {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && !errors.Is(err, client.ErrUnavailable):
		fmt.Fprintf(a.out, "%s: %s\n", what, apiErr.Message)
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintf(a.out, "%s: server unavailable\n", what)
	default:
		fmt.Fprintf(a.out, "%s: %v\n", what, err)
	}
}
