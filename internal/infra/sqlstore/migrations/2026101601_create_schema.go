package migrations

import (
	"context"
	_ "embed"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

//go:embed postgres.sql
var postgresSchema string

//go:embed sqlite.sql
var sqliteSchema string

var Migrations = migrate.NewMigrations()

var dropOrder = []string{"user_answers", "withdrawals", "quiz_sessions", "questions", "settings", "subjects", "users"}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, stmt := range Statements(schemaFor(db)) {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range dropOrder {
				if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

func schemaFor(db *bun.DB) string {
	if db.Dialect().Name() == dialect.SQLite {
		return sqliteSchema
	}
	return postgresSchema
}

// Statements splits a schema file into individual statements.
func Statements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
