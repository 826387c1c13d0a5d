package cli

import (
	"context"

	"chat-quiz-service/internal/config"
	"chat-quiz-service/internal/infra/sqlstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, logger, err := loadEnv(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()
	return nil
}

// openGateway connects to the configured backend and brings its schema up to date.
func openGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sqlstore.Gateway, error) {
	gw, err := sqlstore.Open(ctx, sqlstore.Options{
		PostgresURL:    cfg.Storage.Postgres.URL,
		PostgresDriver: cfg.Storage.Postgres.Driver,
		SQLitePath:     cfg.Storage.SQLite.Path,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := gw.Migrate(ctx); err != nil {
		gw.Close()
		return nil, err
	}
	return gw, nil
}
