// Package cli implements the terminal client commands on top of the session
// store and API client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"boopsite/internal/client"
)

// ErrUsage is returned for an unknown or missing command.
var ErrUsage = errors.New("usage")

const usage = `usage: boopsite-client <command> [args]

commands:
  register [email]                  create an account
  login [email]                     sign in with email and password
  login-fingerprint [hash]          sign in with a registered fingerprint
  register-fingerprint [email] [hash]
                                    link a fingerprint to your account
  logout                            forget the stored session
  whoami                            show the stored session
  profile                           show the identity behind the stored token
  profile edit [-first N] [-last N] [-email E] [-password]
                                    change your own account
  users [list]                      list accounts (admin only)
  users get <id>                    show one account (admin only)
  users create [-email E] [-first N] [-last N] [-role R]
                                    create an account (admin only)
  users update <id> [-email E] [-first N] [-last N] [-role R] [-password]
                                    change an account (admin only)
  users delete <id>                 delete an account (admin only)
  health                            check the server is reachable
`

type App struct {
	store  *client.SessionStore
	api    *client.APIClient
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(store *client.SessionStore, api *client.APIClient, in io.Reader, out io.Writer) *App {
	return &App{
		store:  store,
		api:    api,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "login-fingerprint":
		return a.loginFingerprint(ctx, rest)
	case "register-fingerprint":
		return a.registerFingerprint(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profile(ctx, rest)
	case "users":
		return a.users(ctx, rest)
	case "health":
		return a.health(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", cmd, usage)
		return ErrUsage
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	email, err := a.argOrPrompt(args, 0, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	user, err := a.api.Register(ctx, client.RegisterInput{Email: email, Password: password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s\n", user.Email)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	email, err := a.argOrPrompt(args, 0, "Email")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	user, err := a.store.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func (a *App) loginFingerprint(ctx context.Context, args []string) error {
	hash, err := a.argOrPrompt(args, 0, "Fingerprint hash")
	if err != nil {
		return err
	}

	user, err := a.store.LoginWithFingerprint(ctx, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func (a *App) registerFingerprint(ctx context.Context, args []string) error {
	email, err := a.argOrPrompt(args, 0, "Email")
	if err != nil {
		return err
	}
	hash, err := a.argOrPrompt(args, 1, "Fingerprint hash")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	user, err := a.api.RegisterFingerprint(ctx, email, password, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Fingerprint registered for %s\n", user.Email)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.store.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *App) whoami() error {
	if d := client.AuthGuard(a.store); !d.Allowed {
		fmt.Fprintf(a.out, "Not signed in (go to %s)\n", d.Redirect)
		return nil
	}
	u := a.store.Current()
	fmt.Fprintf(a.out, "%s\t%s\t%s\n", u.ID, u.Email, u.Role)
	return nil
}

func (a *App) argOrPrompt(args []string, i int, prompt string) (string, error) {
	if i < len(args) && strings.TrimSpace(args[i]) != "" {
		return strings.TrimSpace(args[i]), nil
	}
	return promptLine(a.reader, a.out, prompt)
}
