package main

import (
	"fmt"
	"os"

	"lupora-api/internal/repository"
	"lupora-api/internal/seed"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		a.log.Info("schema migrated")
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load products and media from a catalog file",
	Long: `Upserts products by name (refreshing price and description) and adds
media that is not stored yet. Without --file the bundled catalog is used.`,
	RunE: runSeed,
}

var (
	rewriteFrom string
	rewriteTo   string
)

var rewriteImagesCmd = &cobra.Command{
	Use:   "rewrite-images",
	Short: "Rewrite product image extensions, e.g. .png to .webp",
	RunE:  runRewriteImages,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "catalog YAML file (defaults to the bundled catalog)")

	rewriteImagesCmd.Flags().StringVar(&rewriteFrom, "from", ".png", "extension to replace")
	rewriteImagesCmd.Flags().StringVar(&rewriteTo, "to", ".webp", "replacement extension")
}

func runSeed(cmd *cobra.Command, args []string) error {
	data := seed.DefaultCatalog
	if seedFile != "" {
		var err error
		data, err = os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
	}

	catalog, err := seed.Parse(data)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	seeder := seed.NewSeeder(repository.NewProductRepository(a.db), repository.NewMediaRepository(a.db), a.log)
	result, err := seeder.Seed(cmd.Context(), catalog)
	if err != nil {
		return err
	}

	a.log.Info("catalog seeded",
		zap.Int("products_created", result.ProductsCreated),
		zap.Int("products_updated", result.ProductsUpdated),
		zap.Int("media_created", result.MediaCreated),
	)
	return nil
}

func runRewriteImages(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	seeder := seed.NewSeeder(repository.NewProductRepository(a.db), repository.NewMediaRepository(a.db), a.log)
	_, err = seeder.RewriteImages(cmd.Context(), rewriteFrom, rewriteTo)
	return err
}
