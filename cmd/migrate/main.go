// Package main is the schema migration CLI. It applies or rolls back the
// embedded goose migrations against DATABASE_URL.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/pkordes/ride-dispatch/migrations"
)

type upCmd struct{}

func (upCmd) Run(ctx context.Context, p *goose.Provider) error {
	results, err := p.Up(ctx)
	for _, r := range results {
		slog.Info("applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration.String())
	}
	return err
}

type downCmd struct {
	To int64 `help:"Roll back to this version instead of undoing one step." default:"-1"`
}

func (c downCmd) Run(ctx context.Context, p *goose.Provider) error {
	if c.To >= 0 {
		results, err := p.DownTo(ctx, c.To)
		for _, r := range results {
			slog.Info("rolled back", "version", r.Source.Version, "file", r.Source.Path)
		}
		return err
	}
	r, err := p.Down(ctx)
	if r != nil {
		slog.Info("rolled back", "version", r.Source.Version, "file", r.Source.Path)
	}
	return err
}

type statusCmd struct{}

func (statusCmd) Run(ctx context.Context, p *goose.Provider) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		applied := "pending"
		if s.State == goose.StateApplied {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%5d  %-40s  %s\n", s.Source.Version, s.Source.Path, applied)
	}
	return nil
}

var cli struct {
	DatabaseURL string `name:"database-url" env:"DATABASE_URL" required:"" help:"Postgres connection string."`

	Up     upCmd     `cmd:"" help:"Apply all pending migrations."`
	Down   downCmd   `cmd:"" help:"Roll back migrations."`
	Status statusCmd `cmd:"" help:"Show the state of every migration."`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	kctx := kong.Parse(&cli,
		kong.Name("migrate"),
		kong.Description("Ride dispatch schema migrations."),
	)
	if err := run(kctx); err != nil {
		slog.Error("migration failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := sql.Open("pgx", cli.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	provider, err := migrations.NewProvider(db)
	if err != nil {
		return err
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(provider)
}
