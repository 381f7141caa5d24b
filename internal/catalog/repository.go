package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
)

// Repository exposes catalog persistence for the storefront and admin surfaces.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetByID loads one product. A missing row yields (nil, nil) so callers can
// treat stale references as droppable rather than as failures.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByIDs loads the subset of products that still exist, keyed by id.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	byID := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// GetAll returns the full catalog ordered by name.
func (r *Repository) GetAll(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetFiltered returns products matching an optional category and name search.
func (r *Repository) GetFiltered(ctx context.Context, category, search string) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if search != "" {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	var rows []models.Product
	if err := q.Order("name asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Update saves an existing product row.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes a product by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// DecrementStock subtracts qty from the product's stock as a single
// conditional update. It reports whether a row was actually decremented;
// false means the product is missing or has insufficient stock. The guard
// clause is what keeps stock from ever going negative under concurrent
// checkouts.
func (r *Repository) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	if qty <= 0 {
		return true, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", id, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReplenishStock adds qty to the product's stock atomically.
func (r *Repository) ReplenishStock(ctx context.Context, id int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty)).
		Error
}

// LowStock lists products at or below the threshold, lowest stock first.
func (r *Repository) LowStock(ctx context.Context, threshold, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("quantity <= ?", threshold).
		Order("quantity asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
