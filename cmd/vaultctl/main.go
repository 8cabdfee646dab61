// Command vaultctl is a command line client for the certificate inventory.
//
// Configuration comes from VAULT_* environment variables (see internal/config).
// Credentials persist per profile between runs, so a single login serves
// every later command until the refresh token is revoked or expires.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cerbyonvault/vaultclient/client"
	"github.com/cerbyonvault/vaultclient/internal/config"
	"github.com/cerbyonvault/vaultclient/internal/logging"
	"github.com/cerbyonvault/vaultclient/inventory"
)

// command is one vaultctl subcommand
type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":     {"login [-email E] [-password P]", cmdLogin},
	"logout":    {"logout", cmdLogout},
	"whoami":    {"whoami [-json]", cmdWhoami},
	"token":     {"token", cmdToken},
	"profiles":  {"profiles", cmdProfiles},
	"certs":     {"certs [-json] [-expiring DAYS] [-team ID]", cmdCerts},
	"keys":      {"keys [-json]", cmdKeys},
	"websites":  {"websites [-json] [-cert ID] [-add URL] [-delete ID]", cmdWebsites},
	"teams":     {"teams [-json] [-id ID]", cmdTeams},
	"export":    {"export -id ID [-format pem|der|pfx] [-key] [-chain] [-password P] [-o FILE]", cmdExport},
	"upload":    {"upload -file PATH [-name N] [-teams 1,2] [-password P]", cmdUpload},
	"dashboard": {"dashboard [-days N]", cmdDashboard},
	"serve":     {"serve [-addr HOST:PORT]", cmdServe},
}

// app carries what every command needs
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	stdin   *bufio.Reader
	stdout  io.Writer
	stderr  io.Writer
	storage *storage
	auth    *client.AuthClient
	inv     *inventory.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if client.IsAuthFailure(err) {
			fmt.Fprintln(os.Stderr, "session expired, run vaultctl login")
		} else {
			fmt.Fprintf(os.Stderr, "vaultctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		if len(args) == 0 {
			return errors.New("missing command")
		}
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(logging.NewHandler(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: stderr}))

	a := &app{cfg: cfg, logger: logger, stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}
	if args[0] != "serve" {
		if err := a.open(ctx); err != nil {
			return err
		}
		defer a.close()
	}
	return cmd.run(ctx, a, args[1:])
}

// open connects the credential store and restores the saved session
func (a *app) open(ctx context.Context) error {
	st, err := openStorage(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.storage = st

	// upload previews live in the server session, so keep its cookie
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	opts := append(a.cfg.ClientOptions(),
		client.WithHTTPClient(&http.Client{Jar: jar, Timeout: 2 * time.Minute}),
		client.WithLogger(a.logger),
	)
	a.auth, err = client.NewAuthClient(a.cfg.APIURL, st.backend, opts...)
	if err != nil {
		return err
	}
	if err := a.auth.Session().Init(ctx); err != nil {
		return err
	}
	a.auth.Session().Wait()
	a.inv = inventory.NewClient(a.auth.BaseURL(), a.auth.HTTPClient())
	return nil
}

func (a *app) close() {
	if a.storage != nil {
		if err := a.storage.close(); err != nil {
			a.logger.Warn("failed to close credential store", "err", err)
		}
	}
}

// requireSession fails early when no credentials are stored
func (a *app) requireSession() error {
	if !a.auth.IsLoggedIn() {
		return fmt.Errorf("%w: not logged in", client.ErrUnauthenticated)
	}
	return nil
}

// prompt reads one line from stdin after printing label to stderr
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.stderr, label)
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: vaultctl <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  vaultctl %s\n", commands[name].usage)
	}
}
