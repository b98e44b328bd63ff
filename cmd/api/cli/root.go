package cli

import (
	"context"
	"fmt"

	"navconsole/internal/config"
	"navconsole/internal/database"
	"navconsole/internal/logging"
	"navconsole/internal/metrics"
	"navconsole/internal/server"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var envFile string

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "navconsole",
		Short:         "Admin API for users, roles and permissions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "configs/.env", "optional .env file loaded before the environment")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newCatalogCmd())

	return cmd
}

// app bundles what every subcommand that touches the database needs.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	db    *gorm.DB
	srv   *server.Server
	close func()
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(cfg.DBDriver, cfg.DSN(), log)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	log.WithField("driver", cfg.DBDriver).Info("connected to database")

	deny, closeDeny, err := server.NewDenyList(ctx, cfg, log)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}

	srv, err := server.New(cfg, log, db, deny, metrics.New())
	if err != nil {
		_ = closeDeny()
		closeDB(db, log)
		return nil, err
	}

	return &app{
		cfg: cfg,
		log: log,
		db:  db,
		srv: srv,
		close: func() {
			if err := closeDeny(); err != nil {
				log.WithError(err).Warn("closing redis")
			}
			closeDB(db, log)
		},
	}, nil
}

func closeDB(db *gorm.DB, log *logrus.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Warn("closing database")
	}
}
