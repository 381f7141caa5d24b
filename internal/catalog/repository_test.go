package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	return db
}

func mustCreateProduct(t *testing.T, db *gorm.DB, name string, price string, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Category: "groceries",
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestRepositoryGetByIDMissingReturnsNil(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)

	product, err := repo.GetByID(context.Background(), 987654321)
	require.NoError(t, err)
	require.Nil(t, product)
}

func TestRepositoryGetByIDs(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := mustCreateProduct(t, db, fmt.Sprintf("apples-%s", uuid.NewString()), "2.50", 10)
	second := mustCreateProduct(t, db, fmt.Sprintf("pears-%s", uuid.NewString()), "3.20", 4)

	byID, err := repo.GetByIDs(ctx, []int64{first.ID, second.ID, 987654321})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	require.Equal(t, first.Name, byID[first.ID].Name)
	require.True(t, byID[second.ID].Price.Equal(decimal.RequireFromString("3.20")))
}

func TestRepositoryDecrementStockGuardsAgainstOverdraw(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateProduct(t, db, fmt.Sprintf("milk-%s", uuid.NewString()), "1.80", 3)

	ok, err := repo.DecrementStock(ctx, product.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	// only 1 left; asking for 2 must not touch the row
	ok, err = repo.DecrementStock(ctx, product.ID, 2)
	require.NoError(t, err)
	require.False(t, ok)

	reloaded, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Quantity)
}

func TestRepositoryReplenishStockIsAtomicAdd(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateProduct(t, db, fmt.Sprintf("eggs-%s", uuid.NewString()), "4.00", 5)

	require.NoError(t, repo.ReplenishStock(ctx, product.ID, 7))

	reloaded, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 12, reloaded.Quantity)
}

func TestRepositoryGetFiltered(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	marker := uuid.NewString()
	product := &models.Product{
		Name:     fmt.Sprintf("durian-%s", marker),
		Category: fmt.Sprintf("fruit-%s", marker),
		Price:    decimal.RequireFromString("15.00"),
		Quantity: 2,
	}
	require.NoError(t, db.Create(product).Error)

	rows, err := repo.GetFiltered(ctx, product.Category, "DURIAN")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, product.ID, rows[0].ID)

	rows, err = repo.GetFiltered(ctx, product.Category, "rambutan")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRepositoryLowStock(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	low := mustCreateProduct(t, db, fmt.Sprintf("tofu-%s", uuid.NewString()), "2.00", 1)
	mustCreateProduct(t, db, fmt.Sprintf("rice-%s", uuid.NewString()), "9.00", 500)

	rows, err := repo.LowStock(ctx, 2, 100)
	require.NoError(t, err)

	found := false
	for _, row := range rows {
		require.LessOrEqual(t, row.Quantity, 2)
		if row.ID == low.ID {
			found = true
		}
	}
	require.True(t, found)
}
