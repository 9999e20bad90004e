package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"boopsite/internal/client"
	"boopsite/internal/domain"
)

// accountFlags parses the optional account fields shared by profile edit,
// users create and users update. Only flags given on the command line count
// as changes.
type accountFlags struct {
	fs       *flag.FlagSet
	email    string
	first    string
	last     string
	role     string
	password bool
}

func newAccountFlags(name string, out io.Writer, withRole, withPassword bool) *accountFlags {
	f := &accountFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.SetOutput(out)
	f.fs.StringVar(&f.email, "email", "", "email address")
	f.fs.StringVar(&f.first, "first", "", "first name")
	f.fs.StringVar(&f.last, "last", "", "last name")
	if withRole {
		f.fs.StringVar(&f.role, "role", "", "role (user or admin)")
	}
	if withPassword {
		f.fs.BoolVar(&f.password, "password", false, "prompt for a new password")
	}
	return f
}

func (f *accountFlags) parse(args []string) error {
	if err := f.fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if f.fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, f.fs.Arg(0))
	}
	return nil
}

func (f *accountFlags) given() map[string]bool {
	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

// update builds the change set, prompting for a password when -password was given.
func (f *accountFlags) update(out io.Writer) (client.UpdateUserInput, bool, error) {
	var in client.UpdateUserInput
	set := f.given()
	if set["email"] {
		in.Email = &f.email
	}
	if set["first"] {
		in.FirstName = &f.first
	}
	if set["last"] {
		in.LastName = &f.last
	}
	if set["role"] {
		role := domain.Role(f.role)
		in.Role = &role
	}
	if f.password {
		pw, err := promptPassword(out)
		if err != nil {
			return in, false, err
		}
		in.Password = &pw
	}
	return in, len(set) > 0, nil
}

func (a *App) profile(ctx context.Context, args []string) error {
	if d := client.AuthGuard(a.store); !d.Allowed {
		return fmt.Errorf("not signed in (go to %s)", d.Redirect)
	}
	if len(args) > 0 && args[0] == "edit" {
		return a.editProfile(ctx, args[1:])
	}
	if len(args) > 0 {
		return fmt.Errorf("%w: unknown profile command %q", ErrUsage, args[0])
	}

	p, err := a.api.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id:    %s\nemail: %s\nrole:  %s\n", p.ID, p.Email, p.Role)
	return nil
}

// editProfile saves the changes on the server and then mirrors them into the
// local session so whoami reflects them without a new login.
func (a *App) editProfile(ctx context.Context, args []string) error {
	flags := newAccountFlags("profile edit", a.out, false, true)
	if err := flags.parse(args); err != nil {
		return err
	}
	in, changed, err := flags.update(a.out)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: nothing to change", ErrUsage)
	}

	current := a.store.Current()
	updated, err := a.api.UpdateProfile(ctx, current.ID, in)
	if err != nil {
		return err
	}
	if _, err := a.store.UpdateCurrentUser(ctx, client.UserPatch{
		Email:     &updated.Email,
		FirstName: &updated.FirstName,
		LastName:  &updated.LastName,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile updated")
	a.printUser(updated)
	return nil
}

func (a *App) users(ctx context.Context, args []string) error {
	if d := client.AdminGuard(a.store); !d.Allowed {
		return fmt.Errorf("admin access required (go to %s)", d.Redirect)
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		return a.listUsers(ctx)
	case "get":
		return a.getUser(ctx, args)
	case "create":
		return a.createUser(ctx, args)
	case "update":
		return a.updateUser(ctx, args)
	case "delete":
		return a.deleteUser(ctx, args)
	default:
		return fmt.Errorf("%w: unknown users command %q", ErrUsage, sub)
	}
}

func (a *App) listUsers(ctx context.Context) error {
	list, err := a.api.ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tNAME")
	for _, u := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, fullName(u))
	}
	return tw.Flush()
}

func (a *App) getUser(ctx context.Context, args []string) error {
	id, err := requireID(args)
	if err != nil {
		return err
	}
	u, err := a.api.GetUser(ctx, id)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) createUser(ctx context.Context, args []string) error {
	flags := newAccountFlags("users create", a.out, true, false)
	if err := flags.parse(args); err != nil {
		return err
	}
	email := flags.email
	if strings.TrimSpace(email) == "" {
		var err error
		if email, err = promptLine(a.reader, a.out, "Email"); err != nil {
			return err
		}
	}
	password, err := promptPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.api.CreateUser(ctx, client.CreateUserInput{
		Email:     email,
		Password:  password,
		Role:      domain.Role(flags.role),
		FirstName: flags.first,
		LastName:  flags.last,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created")
	a.printUser(u)
	return nil
}

func (a *App) updateUser(ctx context.Context, args []string) error {
	id, err := requireID(args)
	if err != nil {
		return err
	}
	flags := newAccountFlags("users update", a.out, true, true)
	if err := flags.parse(args[1:]); err != nil {
		return err
	}
	in, changed, err := flags.update(a.out)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: nothing to change", ErrUsage)
	}

	u, err := a.api.UpdateUser(ctx, id, in)
	if err != nil {
		return err
	}
	// an admin editing their own account sees it in the local session too
	if current := a.store.Current(); current != nil && current.ID == u.ID {
		if _, err := a.store.UpdateCurrentUser(ctx, client.UserPatch{
			Email:     &u.Email,
			Role:      &u.Role,
			FirstName: &u.FirstName,
			LastName:  &u.LastName,
		}); err != nil {
			return err
		}
	}
	fmt.Fprintln(a.out, "Updated")
	a.printUser(u)
	return nil
}

func (a *App) deleteUser(ctx context.Context, args []string) error {
	id, err := requireID(args)
	if err != nil {
		return err
	}
	if err := a.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

func (a *App) health(ctx context.Context) error {
	if err := a.api.Health(ctx); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *App) printUser(u *client.User) {
	fmt.Fprintf(a.out, "id:    %s\nemail: %s\nrole:  %s\nname:  %s\n", u.ID, u.Email, u.Role, fullName(*u))
}

func requireID(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" || strings.HasPrefix(args[0], "-") {
		return "", errors.Join(ErrUsage, errors.New("user id required"))
	}
	return strings.TrimSpace(args[0]), nil
}

func fullName(u client.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
