package models

import (
	"time"

	"github.com/google/uuid"
)

// UserCartItem is the persisted cart tier, one row per (user, product).
type UserCartItem struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_user_cart_items_user_product"`
	ProductID int64     `gorm:"column:product_id;not null;uniqueIndex:idx_user_cart_items_user_product"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	Selected  bool      `gorm:"column:selected;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
