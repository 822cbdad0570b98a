package service

import (
	"context"
	"testing"
	"time"

	"lupora-api/internal/model"
	"lupora-api/internal/repository"
	"lupora-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestSweeperDeletesIdleCartsAndExpiredKeys(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	cartRepo := repository.NewCartRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	sweeper := NewSweeper(cartRepo, idempotencyRepo, 30*24*time.Hour, time.Hour, zap.NewNop())

	idle := testutil.CreateUser(t, db, "Asha", "asha@example.com")
	active := testutil.CreateUser(t, db, "Ravi", "ravi@example.com")
	p := testutil.CreateProduct(t, db, "Oud Mystique", 6800)

	for _, user := range []*model.User{idle, active} {
		require.NoError(t, cartRepo.Save(ctx, &model.Cart{UserID: user.ID, Items: []model.CartItem{{ProductID: p.ID, Quantity: 1}}}))
	}
	require.NoError(t, db.Model(&model.Cart{}).Where("user_id = ?", idle.ID).
		Update("updated_at", time.Now().Add(-31*24*time.Hour)).Error)

	require.NoError(t, idempotencyRepo.Create(ctx, db, &model.IdempotencyKey{UserID: idle.ID, Key: "old", OrderID: "o1", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, idempotencyRepo.Create(ctx, db, &model.IdempotencyKey{UserID: idle.ID, Key: "new", OrderID: "o2", ExpiresAt: time.Now().Add(time.Hour)}))

	sweeper.Sweep(ctx)

	_, err := cartRepo.FindByUserID(ctx, idle.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = cartRepo.FindByUserID(ctx, active.ID)
	assert.NoError(t, err)

	var keys int64
	require.NoError(t, db.Model(&model.IdempotencyKey{}).Count(&keys).Error)
	assert.Equal(t, int64(1), keys)
}

func TestSweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	db := testutil.NewDB(t)
	sweeper := NewSweeper(repository.NewCartRepository(db), repository.NewIdempotencyRepository(db), time.Hour, 10*time.Millisecond, zap.NewNop())

	sweeper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop()
}
