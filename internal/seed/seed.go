// Package seed loads the product catalog and media library into the store.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"lupora-api/internal/model"
	"lupora-api/internal/repository"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var DefaultCatalog []byte

type Catalog struct {
	Products []ProductEntry `yaml:"products"`
	Media    []MediaEntry   `yaml:"media"`
}

type ProductEntry struct {
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	Image       string  `yaml:"image"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
}

type MediaEntry struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

type Result struct {
	ProductsCreated int
	ProductsUpdated int
	MediaCreated    int
}

func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for i, p := range catalog.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("product %d: name is required", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("product %q: price must not be negative", p.Name)
		}
	}
	for i, m := range catalog.Media {
		if strings.TrimSpace(m.URL) == "" {
			return nil, fmt.Errorf("media %d: url is required", i)
		}
	}

	return &catalog, nil
}

type Seeder struct {
	productRepo repository.ProductRepository
	mediaRepo   repository.MediaRepository
	log         *zap.Logger
}

func NewSeeder(productRepo repository.ProductRepository, mediaRepo repository.MediaRepository, log *zap.Logger) *Seeder {
	return &Seeder{
		productRepo: productRepo,
		mediaRepo:   mediaRepo,
		log:         log.Named("seed"),
	}
}

// Seed upserts products by name and adds media whose url is not stored yet.
// Running it twice leaves the store unchanged.
func (s *Seeder) Seed(ctx context.Context, catalog *Catalog) (Result, error) {
	var result Result

	for _, entry := range catalog.Products {
		product := &model.Product{
			Name:        strings.TrimSpace(entry.Name),
			Category:    entry.Category,
			Image:       entry.Image,
			Price:       entry.Price,
			Description: entry.Description,
		}

		created, err := s.productRepo.UpsertByName(ctx, product)
		if err != nil {
			return result, fmt.Errorf("upsert product %q: %w", product.Name, err)
		}

		if created {
			result.ProductsCreated++
		} else {
			result.ProductsUpdated++
		}
		s.log.Info("product seeded",
			zap.String("name", product.Name),
			zap.Float64("price", product.Price),
			zap.Bool("created", created),
		)
	}

	for _, entry := range catalog.Media {
		exists, err := s.mediaRepo.ExistsByURL(ctx, entry.URL)
		if err != nil {
			return result, fmt.Errorf("check media %q: %w", entry.URL, err)
		}
		if exists {
			continue
		}

		media := &model.Media{Name: entry.Name, Type: entry.Type, URL: entry.URL}
		if err := s.mediaRepo.Create(ctx, media); err != nil {
			return result, fmt.Errorf("create media %q: %w", entry.URL, err)
		}
		result.MediaCreated++
	}

	return result, nil
}

// RewriteImages replaces the from extension with to on every product image
// ending in from, e.g. ".png" to ".webp".
func (s *Seeder) RewriteImages(ctx context.Context, from, to string) (int64, error) {
	if !strings.HasPrefix(from, ".") || !strings.HasPrefix(to, ".") {
		return 0, errors.New("extensions must start with a dot")
	}
	if from == to {
		return 0, nil
	}

	updated, err := s.productRepo.RewriteImageExtension(ctx, from, to)
	if err != nil {
		return updated, fmt.Errorf("rewrite image extension: %w", err)
	}

	s.log.Info("product images rewritten",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("updated", updated),
	)
	return updated, nil
}
