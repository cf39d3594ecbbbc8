// Command redctl is a terminal client for Red Networking.
//
// It shares configuration and the session file with the front-end server,
// so logging in with one logs in the other.
//
//	redctl login -email ana@uni.edu
//	redctl projects -page 2
//	redctl rate -security 3 -functionality 4 -efficiency 5 -design 2 -architecture 5 <project-id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apiclient"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/config"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/redapi"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/service"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app is what every command runs against.
type app struct {
	store    *session.Store
	accounts *service.AccountService
	catalog  *service.CatalogService
	db       io.Closer
	logger   *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

func (a *app) close() {
	if a.catalog != nil {
		a.catalog.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("closing session database failed", slog.String("error", err.Error()))
	}
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger, stdin io.Reader, stdout io.Writer) (*app, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	store := session.New(db, logger)
	store.Restore(ctx)

	api, err := apiclient.New(cfg.APIURL, logger,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		apiclient.WithTokenSource(store),
	)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.Error("closing session database failed", slog.String("error", cerr.Error()))
		}
		return nil, err
	}
	red := redapi.New(api, store, logger)

	return &app{
		store:    store,
		accounts: service.NewAccountService(red, store, logger),
		catalog: service.NewCatalogService(red, store, service.CatalogOptions{
			PageSize:        cfg.PageSize,
			MaxVisiblePages: cfg.MaxVisiblePages,
		}, logger),
		db:     db,
		logger: logger,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}

// run is main without the process: it returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("redctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "log every backend request and response")
	global.Usage = func() { usage(stderr, global) }

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}
	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "redctl: unknown command %q\n\n", name)
		global.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "redctl: %v\n", err)
		return 1
	}
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	a, err := openApp(ctx, cfg, logger, stdin, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "redctl: %v\n", err)
		return 1
	}
	defer a.close()

	if err := cmd.run(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "redctl: %s\n", apperror.UserMessage(err))
		logger.Debug("command failed", slog.String("command", name), slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "usage: redctl [-v] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(w)
	global.PrintDefaults()
}
