package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/glebk/status-board/internal/client"
	"github.com/glebk/status-board/internal/dashboard"
	"github.com/glebk/status-board/internal/domain"
)

const StatusCtlVersion = "0.1.0"

// PasswordEnv is read when --password is not given, before prompting
const PasswordEnv = "STATUS_PASSWORD"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", 0)
}

func main() {
	usage := `Status board control.

Usage:
    statusctl login [--url=<url>] [--password=<password>] <name>...
    statusctl logout
    statusctl set <status>
    statusctl clear
    statusctl board [--url=<url>]
    statusctl watch [--poll=<interval>]
    statusctl -h | --help
    statusctl --version

Statuses are 4, 8 and Home.

The password is taken from --password, then $STATUS_PASSWORD, then a prompt.
Prefer the prompt or the variable: --password shows up in ps and shell history.

Options:
    -h --help              Show this screen.
    --version              Show version.
    --url=<url>            Server url [default: http://localhost:8080].
    --password=<password>  Shared team password. Visible to other local users.
    --poll=<interval>      Refresh on this interval instead of listening
                           for changes, e.g. 5s.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], StatusCtlVersion)
	if err != nil {
		panic(err)
	}

	sessionPath, err := client.DefaultSessionPath()
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if login_, _ := opts.Bool("login"); login_ {
		err = login(ctx, opts, sessionPath)
	} else if logout_, _ := opts.Bool("logout"); logout_ {
		err = logout(sessionPath)
	} else if set_, _ := opts.Bool("set"); set_ {
		err = setStatus(ctx, opts, sessionPath)
	} else if clear_, _ := opts.Bool("clear"); clear_ {
		err = clearBoard(ctx, sessionPath)
	} else if board_, _ := opts.Bool("board"); board_ {
		err = showBoard(ctx, opts, sessionPath)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		err = watch(ctx, opts, sessionPath)
	}
	if err != nil {
		fatal(err)
	}
}

// login registers the name and stores the session for later commands
func login(ctx context.Context, opts docopt.Opts, sessionPath string) error {
	url, _ := opts.String("--url")
	names, _ := opts["<name>"].([]string)

	flagPassword, _ := opts.String("--password")
	password, err := resolvePassword(flagPassword, os.Getenv, readPassword)
	if err != nil {
		return err
	}

	session := domain.NewSession(strings.Join(names, " "), password)
	if err := client.New(url).Register(ctx, session); err != nil {
		return err
	}

	if err := client.SaveSession(sessionPath, client.StoredSession{Session: session, URL: url}); err != nil {
		return err
	}
	Out.Printf("Logged in as %s.", session.Name)
	return nil
}

func logout(sessionPath string) error {
	if err := client.ClearSession(sessionPath); err != nil {
		return err
	}
	Out.Printf("Logged out.")
	return nil
}

func setStatus(ctx context.Context, opts docopt.Opts, sessionPath string) error {
	stored, err := client.LoadSession(sessionPath)
	if err != nil {
		return err
	}

	status, _ := opts.String("<status>")
	if err := client.New(stored.URL).UpdateStatus(ctx, stored.Session, domain.Status(status)); err != nil {
		return err
	}
	Out.Printf("%s is now at %s.", stored.Name, status)
	return nil
}

func clearBoard(ctx context.Context, sessionPath string) error {
	stored, err := client.LoadSession(sessionPath)
	if err != nil {
		return err
	}

	if err := client.New(stored.URL).ClearAll(ctx, stored.Session); err != nil {
		return err
	}
	Out.Printf("Board cleared.")
	return nil
}

// showBoard prints the board once. It works without logging in.
func showBoard(ctx context.Context, opts docopt.Opts, sessionPath string) error {
	url, _ := opts.String("--url")
	var me string
	if stored, err := client.LoadSession(sessionPath); err == nil {
		me = stored.Name
		url = stored.URL
	}

	people, err := client.New(url).List(ctx)
	if err != nil {
		return err
	}
	return dashboard.Render(os.Stdout, dashboard.Snapshot{People: people, Me: me}, time.Now())
}

// watch redraws the board on every change until interrupted
func watch(ctx context.Context, opts docopt.Opts, sessionPath string) error {
	stored, err := client.LoadSession(sessionPath)
	if err != nil {
		return err
	}

	c := client.New(stored.URL)
	var changes dashboard.ChangeSource = c
	if poll, _ := opts.String("--poll"); poll != "" {
		interval, err := time.ParseDuration(poll)
		if err != nil {
			return fmt.Errorf("%w: invalid --poll interval %q", domain.ErrValidation, poll)
		}
		changes = dashboard.Poller{Interval: interval}
	}

	view := dashboard.NewView(stored.Session, c, changes, func(snap dashboard.Snapshot) {
		// clear screen, cursor home
		fmt.Fprint(os.Stdout, "\033[H\033[2J")
		Out.Printf("Status board  %s\n", stored.URL)
		if err := dashboard.Render(os.Stdout, snap, time.Now()); err != nil {
			Err.Printf("render: %v", err)
		}
		if snap.MyStatus == "" {
			Out.Printf("\nYou have not picked a status. Run: statusctl set <4|8|Home>")
		} else {
			Out.Printf("\nYou: %s", snap.MyStatus)
		}
		if snap.Err != nil {
			Err.Printf("Refresh failed (%s), showing the last board.", snap.Err)
		}
	})
	return view.Run(ctx)
}

// resolvePassword picks the flag value, then the environment, then prompts
func resolvePassword(flagValue string, getenv func(string) string, prompt func() (string, error)) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if password := getenv(PasswordEnv); password != "" {
		return password, nil
	}
	return prompt()
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(passwordBytes), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func fatal(err error) {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		Err.Printf("Not logged in. Run: statusctl login <name>")
	case errors.Is(err, domain.ErrUnauthorized):
		Err.Printf("Wrong password or not allowed.")
	case errors.Is(err, domain.ErrNetwork):
		Err.Printf("Cannot reach the server (%s).", err)
	default:
		Err.Printf("%s", err)
	}
	os.Exit(1)
}
