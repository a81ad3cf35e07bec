package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BradenHooton/uniplus/internal/app"
	"github.com/BradenHooton/uniplus/internal/config"
	"github.com/BradenHooton/uniplus/internal/models"
	"golang.org/x/term"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Keep the prompt clean: only warnings and above go to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &syncWriter{w: os.Stdout}
	var console *Console

	portal, err := app.Build(ctx, cfg, logger, func(session *models.Session, reason error) {
		console.ForcedLogout(session, reason)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup:", err)
		os.Exit(1)
	}
	defer portal.Close()

	console = NewConsole(portal, os.Stdin, out, terminalPassword(out))

	if session, err := portal.Resume(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "resume:", err)
	} else if session != nil {
		fmt.Fprintf(out, "welcome back, %s\n", session.User.Name)
	}

	if err := console.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// terminalPassword reads without echo when stdin is a terminal. Piped input
// falls back to the console's line reader.
func terminalPassword(out *syncWriter) func() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func() (string, error) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
