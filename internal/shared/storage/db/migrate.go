package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

func prepareGoose() error {
	goose.SetBaseFS(migrationFiles)
	return goose.SetDialect("postgres")
}

// RunMigrations applies all pending embedded migrations. A nil database is a
// no-op so in-memory deployments share the boot path.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	if err := prepareGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, migrationsDir)
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	if err := prepareGoose(); err != nil {
		return err
	}
	return goose.DownContext(ctx, database, migrationsDir)
}

// MigrationStatus prints the applied state of each embedded migration.
func MigrationStatus(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	if err := prepareGoose(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, database, migrationsDir)
}
