package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/diewo77/invoice-dashboard/internal/config"
	"github.com/diewo77/invoice-dashboard/internal/db"
	"github.com/diewo77/invoice-dashboard/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRootCmd() *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:           "invoices",
		Short:         "Invoice dashboard server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding an optional config.yaml")

	root.AddCommand(
		newServeCmd(&configDir),
		newMigrateCmd(&configDir),
		newSeedCmd(&configDir),
	)
	return root
}

// setup loads configuration, builds the logger and connects to the database.
func setup(ctx context.Context, configDir string) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	conn, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, log, conn, nil
}

func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, conn, err := setup(ctx, *configDir)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer func() { _ = db.Close(conn) }()

			if cfg.App.Migrations || cfg.Database.Driver == "sqlite" {
				if err := db.Migrate(cfg.Database, conn); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				log.Info("Migrations completed")
			}

			app, err := newApp(cfg, conn, log)
			if err != nil {
				return err
			}
			return app.run(ctx)
		},
	}
}

func newMigrateCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, conn, err := setup(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer func() { _ = db.Close(conn) }()

			if err := db.Migrate(cfg.Database, conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("Migrations completed successfully")
			return nil
		},
	}
}

func newSeedCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo customers and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, conn, err := setup(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer func() { _ = db.Close(conn) }()

			n, err := db.Seed(cmd.Context(), conn)
			if err != nil {
				return err
			}
			log.Info("Seeding completed", zap.Int64("customers_inserted", n))
			return nil
		},
	}
}
