package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/uniplus/internal/app"
	"github.com/BradenHooton/uniplus/internal/models"
)

const helpText = `commands:
  signup    create an account and sign in
  login     sign in with student ID and password
  demo      open a demo session
  whoami    show the active session
  refresh   renew the session tokens now
  recover   mail a password recovery code
  reset     set a new password with a recovery code
  ask       ask the campus assistant a question
  logout    end the session
  quit      exit`

// syncWriter serialises writes from the prompt loop and the heartbeat
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Console is the interactive front end of the portal core
type Console struct {
	portal       *app.App
	in           *bufio.Scanner
	out          io.Writer
	readPassword func() (string, error)
}

// NewConsole reads commands from in. readPassword, when nil, reads the
// password as a plain input line.
func NewConsole(portal *app.App, in io.Reader, out io.Writer, readPassword func() (string, error)) *Console {
	c := &Console{
		portal:       portal,
		in:           bufio.NewScanner(in),
		out:          out,
		readPassword: readPassword,
	}
	if c.readPassword == nil {
		c.readPassword = func() (string, error) { return c.line() }
	}
	return c
}

// ForcedLogout is the heartbeat callback
func (c *Console) ForcedLogout(session *models.Session, reason error) {
	msg := "session expired"
	if errors.Is(reason, models.ErrRotationFailed) {
		msg = "session could not be renewed"
	}
	fmt.Fprintf(c.out, "\n[%s, signed out %s]\n", msg, session.User.StudentID)
}

// Run processes commands until quit or end of input
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "UniPlus campus portal. Type 'help' for commands.")

	for {
		fmt.Fprint(c.out, "> ")
		cmd, err := c.line()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return nil
			}
			return err
		}

		verb, rest, _ := strings.Cut(strings.TrimSpace(cmd), " ")
		switch strings.ToLower(verb) {
		case "":
		case "help":
			fmt.Fprintln(c.out, helpText)
		case "signup":
			c.report(c.signup(ctx))
		case "login":
			c.report(c.login(ctx))
		case "demo":
			c.report(c.open(c.portal.Auth.DemoAccess(ctx)))
		case "whoami":
			c.report(c.whoami(ctx))
		case "refresh":
			c.report(c.open(c.portal.Auth.Refresh(ctx)))
		case "recover":
			c.report(c.recover(ctx))
		case "reset":
			c.report(c.reset(ctx))
		case "ask":
			c.report(c.ask(ctx, rest))
		case "logout":
			if err := c.portal.Auth.Logout(ctx); err != nil {
				c.report(err)
			} else {
				fmt.Fprintln(c.out, "signed out")
			}
		case "quit", "exit":
			return nil
		default:
			fmt.Fprintf(c.out, "unknown command %q\n", verb)
		}
	}
}

func (c *Console) line() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Console) ask(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		fmt.Fprint(c.out, "question: ")
		var err error
		if query, err = c.line(); err != nil {
			return err
		}
	}

	var campusContext string
	if session, err := c.portal.Auth.Current(ctx); err == nil {
		u := session.User
		campusContext = fmt.Sprintf("Student %s of %s, batch %s, %s", u.Name, u.Department, u.Batch, u.Year)
	}

	reply, err := c.portal.Assistant.Ask(ctx, query, campusContext)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, reply)
	return nil
}

func (c *Console) prompt(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	return c.line()
}

func (c *Console) password(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	return c.readPassword()
}

func (c *Console) signup(ctx context.Context) error {
	var profile models.User
	var err error
	if profile.StudentID, err = c.prompt("student ID (blank to generate)"); err != nil {
		return err
	}
	if profile.Name, err = c.prompt("name"); err != nil {
		return err
	}
	if profile.Email, err = c.prompt("email"); err != nil {
		return err
	}
	pw, err := c.password("password")
	if err != nil {
		return err
	}
	return c.open(c.portal.Auth.Signup(ctx, profile, pw))
}

func (c *Console) login(ctx context.Context) error {
	id, err := c.prompt("student ID")
	if err != nil {
		return err
	}
	pw, err := c.password("password")
	if err != nil {
		return err
	}
	return c.open(c.portal.Auth.Login(ctx, id, pw))
}

func (c *Console) recover(ctx context.Context) error {
	email, err := c.prompt("email")
	if err != nil {
		return err
	}
	if err := c.portal.Recovery.RequestRecovery(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "if the email is registered, a recovery code is on its way")
	return nil
}

func (c *Console) reset(ctx context.Context) error {
	id, err := c.prompt("student ID")
	if err != nil {
		return err
	}
	code, err := c.prompt("recovery code")
	if err != nil {
		return err
	}
	pw, err := c.password("new password")
	if err != nil {
		return err
	}
	if err := c.portal.Recovery.ResetPassword(ctx, id, code, pw); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "password updated")
	return nil
}

func (c *Console) open(session *models.Session, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signed in as %s (%s)\n", session.User.Name, session.User.StudentID)
	return nil
}

func (c *Console) whoami(ctx context.Context) error {
	session, err := c.portal.Auth.Current(ctx)
	if err != nil {
		return err
	}
	left := session.TimeLeft(c.portal.Sessions.Now()).Round(time.Second)
	fmt.Fprintf(c.out, "%s (%s), %s, session expires in %s\n",
		session.User.Name, session.User.StudentID, session.User.Department, left)
	return nil
}

func (c *Console) report(err error) {
	if err == nil {
		return
	}

	var locked *models.LockedError
	switch {
	case errors.As(err, &locked):
		fmt.Fprintf(c.out, "too many failed attempts, try again in %s\n", locked.RetryAfter.Round(time.Second))
	case errors.Is(err, models.ErrInvalidCredentials):
		fmt.Fprintln(c.out, "invalid student ID or password")
	case errors.Is(err, models.ErrIdentityExists):
		fmt.Fprintln(c.out, "student ID already registered")
	case errors.Is(err, models.ErrSessionExpired):
		fmt.Fprintln(c.out, "session expired, please log in again")
	case errors.Is(err, models.ErrRotationFailed):
		fmt.Fprintln(c.out, "session could not be renewed, please log in again")
	case errors.Is(err, models.ErrNoSession):
		fmt.Fprintln(c.out, "not signed in")
	case errors.Is(err, models.ErrRecoveryInvalid):
		fmt.Fprintln(c.out, "invalid or expired recovery code")
	case errors.Is(err, models.ErrKeyNotFound):
		fmt.Fprintln(c.out, "assistant unavailable: GEMINI_API_KEY is not set")
	default:
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}
