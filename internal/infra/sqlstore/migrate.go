package sqlstore

import (
	"context"
	"fmt"

	"chat-quiz-service/internal/infra/sqlstore/migrations"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// Migrate applies every pending schema migration for the live backend.
func (g *Gateway) Migrate(ctx context.Context) error {
	migrator := migrate.NewMigrator(g.db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		g.logger.Info("schema up to date", zap.String("backend", string(g.Backend())))
		return nil
	}
	g.logger.Info("migrations applied", zap.String("backend", string(g.Backend())), zap.String("group", group.String()))
	return nil
}
