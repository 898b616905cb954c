package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/injops/dashboard/internal/config"
	"github.com/injops/dashboard/internal/log"
	"github.com/injops/dashboard/migrations"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the trade-history schema migrations",

	SilenceUsage: true,
}

func init() {
	for _, c := range []struct {
		use   string
		short string
		run   func(*sql.DB, string, ...goose.OptionsFunc) error
	}{
		{"up", "Migrate the database to the most recent version", goose.Up},
		{"down", "Roll back the most recent migration", goose.Down},
		{"status", "Print the status of all migrations", goose.Status},
	} {
		rootCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return migrate(c.use, c.run)
			},
		})
	}
}

func migrate(name string, run func(*sql.DB, string, ...goose.OptionsFunc) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := log.NewSugar(cfg.Env, log.Options{File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("DASH_POSTGRES_DSN is required")
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	logger.Infow("Running migrations", "command", name)
	if err := run(db, "."); err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	logger.Infow("Migrations finished", "command", name)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
