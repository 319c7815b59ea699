package command

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/shiva/shiptrack/config"
	"github.com/shiva/shiptrack/internal/repository"
	"github.com/shiva/shiptrack/pkg/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the shipments and notifications tables",
	Long: `Apply the embedded PostgreSQL schema. Every statement is idempotent,
so running it against an up-to-date database is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Println("✓ Schema applied")
	return nil
}
