// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"lupora-api/internal/client"
	"lupora-api/internal/config"
	"lupora-api/internal/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.OpenDatabase(config.Database{
		Driver:         "sqlite",
		URL:            "file::memory:",
		ConnectTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, client.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func CreateProduct(t *testing.T, db *gorm.DB, name string, price float64) *model.Product {
	t.Helper()

	product := &model.Product{
		Name:        name,
		Category:    "Eau de Parfum",
		Image:       "/" + name + ".webp",
		Price:       price,
		Description: name + " description",
	}
	require.NoError(t, db.WithContext(context.Background()).Create(product).Error)

	return product
}

func CreateUser(t *testing.T, db *gorm.DB, name, email string) *model.User {
	t.Helper()

	user := &model.User{Name: name, Email: email, Password: "$2a$04$not-a-real-hash-for-tests-only........"}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)

	return user
}
