package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/creditledger/pkg/db/option"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID     int64  `gorm:"primaryKey"`
	Group  string `gorm:"column:grp"`
	Weight int64
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&widget{}))
	return db
}

func TestStoreFindWithOptions(t *testing.T) {
	db := setupDB(t)
	store := ProvideStore[widget](db)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Create(ctx, &widget{ID: i, Group: "a", Weight: i * 10}))
	}
	require.NoError(t, store.Create(ctx, &widget{ID: 6, Group: "b", Weight: 1}))

	page := pagination.Offset{Limit: 2, Offset: 1}.Normalize(10, 100)
	rows, err := store.Find(ctx, &widget{Group: "a"},
		option.WithSortBy("weight", option.Desc),
		option.ApplyPagination(page),
	)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(40), rows[0].Weight)

	count, err := store.Count(ctx, &widget{Group: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestStoreFindOneMissingReturnsNil(t *testing.T) {
	db := setupDB(t)
	store := ProvideStore[widget](db)

	got, err := store.FindOne(context.Background(), &widget{ID: 42})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreWithTrxRollsBack(t *testing.T) {
	db := setupDB(t)
	store := ProvideStore[widget](db)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := store.WithTrx(tx).Create(ctx, &widget{ID: 1, Group: "a"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	count, err := store.Count(ctx, &widget{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSortByIgnoresUnsafeColumn(t *testing.T) {
	db := setupDB(t)
	store := ProvideStore[widget](db)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &widget{ID: 1, Group: "a"}))

	rows, err := store.Find(ctx, nil, option.WithSortBy("weight; DROP TABLE widgets", option.Asc))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
