// Package migrate runs the embedded goose migrations against PostgreSQL.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/goph-chat/migrations"
)

// Commands accepted by Run.
const (
	CmdUp     = "up"
	CmdDown   = "down"
	CmdStatus = "status"
)

// Up runs all pending migrations.
func Up(ctx context.Context, dsn string) error { return Run(ctx, dsn, CmdUp) }

// Run executes a goose command (up, down or status) over the pgx stdlib driver.
func Run(ctx context.Context, dsn, command string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case CmdUp:
		return goose.UpContext(ctx, db, ".")
	case CmdDown:
		return goose.DownContext(ctx, db, ".")
	case CmdStatus:
		return goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("migrate: unknown command %q", command)
	}
}
