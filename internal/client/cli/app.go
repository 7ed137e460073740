package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Norrels/Upframer-auth/internal/client/client"
	"github.com/Norrels/Upframer-auth/internal/client/config"
)

// authClient is satisfied by *client.AuthClient.
type authClient interface {
	Health(ctx context.Context) error
	Register(ctx context.Context, email, username string, password []byte) (*client.AuthResult, error)
	Login(ctx context.Context, email string, password []byte) (*client.AuthResult, error)
	Me(ctx context.Context, token string) (*client.Identity, error)
}

type App struct {
	config *config.Config
	client authClient
	reader *bufio.Reader
	out    io.Writer

	token    string
	userName string
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewAuthClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) Run(ctx context.Context) {
	fmt.Fprintf(a.out, "Upframer auth CLI, server %s (type 'help' for commands)\n", a.config.ServerURL)
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.token != ""
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}
