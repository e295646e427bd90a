// Package migrate applies the embedded goose migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/odyssey-erp/bizcore/migrations"
)

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/migrate: open: %w", err)
	}
	return db, nil
}

func provider(db *sql.DB, source fs.FS) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, source)
	if err != nil {
		return nil, fmt.Errorf("platform/migrate: provider: %w", err)
	}
	return p, nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	p, err := provider(db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("platform/migrate: up: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", slog.String("source", r.Source.Path), slog.Duration("duration", r.Duration))
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	p, err := provider(db, migrations.FS)
	if err != nil {
		return err
	}
	r, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("platform/migrate: down: %w", err)
	}
	logger.Info("migration rolled back", slog.String("source", r.Source.Path))
	return nil
}

// Status reports applied state for every migration.
func Status(ctx context.Context, dsn string) ([]*goose.MigrationStatus, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	p, err := provider(db, migrations.FS)
	if err != nil {
		return nil, err
	}
	return p.Status(ctx)
}
