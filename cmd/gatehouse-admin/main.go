package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/target/gatehouse/config"
	"github.com/target/gatehouse/internal/adapters/authroles"
	"github.com/target/gatehouse/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout   = 5 * time.Minute
	defaultHealthcheckTimeout = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger(slog.LevelInfo)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.InitLogger(cfg.Observability.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations for the postgres session backend",
			run:         runMigrations,
		},
		"healthcheck": {
			name:        "healthcheck",
			description: "Exercise session, flash, CSRF and identity against the configured backend",
			run:         runHealthcheck,
		},
		"role": {
			name:        "role",
			description: "Show the role derived from a list of groups",
			run:         runRole,
		},
		"sessions-purge": {
			name:        "sessions-purge",
			description: "Delete expired session records",
			run:         runSessionsPurge,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: gatehouse-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-24s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	return writef(cmdCtx.Out, "Migrations complete\n")
}

type roleOptions struct {
	Groups []string
}

func parseRoleFlags(args []string) (roleOptions, error) {
	fs := flag.NewFlagSet("role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var raw string
	fs.StringVar(&raw, "groups", "", "Semicolon-separated group names")
	if err := fs.Parse(args); err != nil {
		return roleOptions{}, err
	}

	var opts roleOptions
	for _, g := range strings.Split(raw, ";") {
		if g = strings.TrimSpace(g); g != "" {
			opts.Groups = append(opts.Groups, g)
		}
	}
	return opts, nil
}

func runRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseRoleFlags(args)
	if err != nil {
		return err
	}
	authz := cmdCtx.Config.Auth.Authorization()
	role := authroles.DeriveRole(opts.Groups, authz)
	if err := writef(cmdCtx.Out, "Groups: %s\n", strings.Join(opts.Groups, ", ")); err != nil {
		return err
	}
	return writef(cmdCtx.Out, "Role:   %s\n", role)
}

func runSessionsPurge(cmdCtx *commandContext, _ []string) error {
	store, err := bootstrap.BuildSessionStore(cmdCtx.Ctx, bootstrap.SessionStoreConfig{
		Config: &cmdCtx.Config,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("session store close failed", "error", closeErr)
		}
	}()

	if store.Purger == nil {
		return writef(cmdCtx.Out, "Backend %q expires sessions natively; nothing to purge\n", cmdCtx.Config.Session.Backend)
	}
	n, err := store.Purger.PurgeExpired(cmdCtx.Ctx)
	if err != nil {
		return fmt.Errorf("purge expired sessions: %w", err)
	}
	return writef(cmdCtx.Out, "Purged %d expired session(s)\n", n)
}
