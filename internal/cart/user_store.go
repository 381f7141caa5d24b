package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
)

var cartConflictColumns = []clause.Column{{Name: "user_id"}, {Name: "product_id"}}

// UserStore is the durable per-user cart tier backed by user_cart_items.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore builds the persisted cart tier around the GORM connection.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a store bound to the provided transaction.
func (s *UserStore) WithTx(tx *gorm.DB) *UserStore {
	return &UserStore{db: tx}
}

// Load returns the user's persisted cart as a map.
func (s *UserStore) Load(ctx context.Context, userID uuid.UUID) (Cart, error) {
	var rows []models.UserCartItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	loaded := make(Cart, len(rows))
	for _, row := range rows {
		if row.Quantity <= 0 {
			continue
		}
		loaded[row.ProductID] = Entry{Quantity: row.Quantity, Selected: row.Selected}
	}
	return loaded, nil
}

// AddOne upserts the row at quantity+1 and marks it selected.
func (s *UserStore) AddOne(ctx context.Context, userID uuid.UUID, productID int64) error {
	row := models.UserCartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  1,
		Selected:  true,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: cartConflictColumns,
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("quantity + 1"),
			"selected":   true,
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
}

// Increase bumps the row's quantity by one without touching selection.
func (s *UserStore) Increase(ctx context.Context, userID uuid.UUID, productID int64) error {
	row := models.UserCartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  1,
		Selected:  true,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: cartConflictColumns,
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("quantity + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
}

// Decrease lowers the quantity by one, deleting the row when it would reach 0.
func (s *UserStore) Decrease(ctx context.Context, userID uuid.UUID, productID int64) error {
	tx := s.db.WithContext(ctx)
	res := tx.Model(&models.UserCartItem{}).
		Where("user_id = ? AND product_id = ? AND quantity > 1", userID, productID).
		UpdateColumn("quantity", gorm.Expr("quantity - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.UserCartItem{}).Error
}

// SetQuantity writes an absolute quantity; 0 (or less) deletes the row. A nil
// selected leaves the flag alone on existing rows.
func (s *UserStore) SetQuantity(ctx context.Context, userID uuid.UUID, productID int64, qty int, selected *bool) error {
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	assignments := map[string]any{
		"quantity":   qty,
		"updated_at": time.Now(),
	}
	row := models.UserCartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		Selected:  true,
	}
	if selected != nil {
		assignments["selected"] = *selected
		row.Selected = *selected
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   cartConflictColumns,
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
}

// Remove deletes the row for the product.
func (s *UserStore) Remove(ctx context.Context, userID uuid.UUID, productID int64) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.UserCartItem{}).Error
}

// Clear empties the user's persisted cart.
func (s *UserStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserCartItem{}).Error
}

// Replace rewrites the persisted cart wholesale (clear-then-rewrite) in one
// transaction, as the login merge and logout persist require.
func (s *UserStore) Replace(ctx context.Context, userID uuid.UUID, cart Cart) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserCartItem{}).Error; err != nil {
			return err
		}
		if len(cart) == 0 {
			return nil
		}
		rows := make([]models.UserCartItem, 0, len(cart))
		for pid, entry := range cart {
			if entry.Quantity <= 0 {
				continue
			}
			rows = append(rows, models.UserCartItem{
				UserID:    userID,
				ProductID: pid,
				Quantity:  entry.Quantity,
				Selected:  entry.Selected,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}
