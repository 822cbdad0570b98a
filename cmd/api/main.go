package main

import (
	"fmt"
	"os"

	"lupora-api/internal/client"
	"lupora-api/internal/config"
	"lupora-api/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Lupora storefront API",
	Long: `Serves the Lupora perfume storefront API.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, rewriteImagesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs before it can do work.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := client.OpenDatabase(cfg.Database, log)
	if err != nil {
		log.Error("database connection failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		_ = log.Sync()
		return nil, err
	}
	log.Info("database connected", zap.String("driver", cfg.Database.Driver))

	if err := client.Migrate(db); err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
