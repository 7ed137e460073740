package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. *App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Me(ctx context.Context) error
	Health(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF or "exit"/"quit". Commands
// prompt on the same reader, so no input is buffered elsewhere.
//
//	Not logged in: help, register, login, health, exit
//	Logged in:     help, me, health, logout, exit
//
// Errors returned by commands are ignored here; the commands report them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("auth %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, health, logout, exit")
			} else {
				printlnFn("Available commands: register, login, health, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "me", "whoami":
			_ = a.Me(ctx)

		case "health", "ping":
			_ = a.Health(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
