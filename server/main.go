package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/dataflow"
	"github.com/meikuraledutech/dataflow/memory"
	"github.com/meikuraledutech/dataflow/postgres"
	"github.com/meikuraledutech/dataflow/sqlite"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	addr        string
	databaseURL string
	sqlitePath  string
	logLevel    string
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "dataflowd",
		Short: "HTTP service for editing and compiling dataflow graphs",
		Long: `dataflowd stores dataflow graphs and exposes the editing operations
(add/delete node, add/delete edge) over HTTP.

Storage is PostgreSQL when --database-url (or DATABASE_URL) is set, SQLite
when --sqlite is set, and in-memory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":3000", "listen address")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite", "", "path to a SQLite database file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func serve(ctx context.Context, opts options) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, opts, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := repo.CreateSchema(ctx); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	app := newApp(repo, log)
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("listening", "addr", opts.addr)
	return app.Listen(opts.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func openRepository(ctx context.Context, opts options, log *slog.Logger) (dataflow.Repository, func(), error) {
	switch {
	case opts.databaseURL != "":
		pool, err := pgxpool.New(ctx, opts.databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		log.Info("using postgres storage")
		return postgres.New(pool), pool.Close, nil
	case opts.sqlitePath != "":
		s, err := sqlite.Open(opts.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite storage", "path", opts.sqlitePath)
		return s, func() { s.Close() }, nil
	default:
		log.Warn("no database configured, flows are kept in memory")
		return memory.New(), func() {}, nil
	}
}
