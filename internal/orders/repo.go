package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
)

// Repository persists orders and their frozen line items.
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

// Create inserts the order row together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByNumber loads an order with its items. Missing orders yield (nil, nil).
func (r *Repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "order_number = ?", orderNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByID loads an order with its items by primary key.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid flips paid to true exactly once. The paid=false guard makes the
// second call a no-op, which is what keeps payment confirmation idempotent.
func (r *Repository) MarkPaid(ctx context.Context, id int64, reference string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]any{
			"paid":              true,
			"paid_at":           paidAt,
			"payment_reference": reference,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimGuestOrders reassigns unowned orders whose contact details match the
// logging-in user and which were created after the cutoff. Returns how many
// rows were claimed.
func (r *Repository) ClaimGuestOrders(ctx context.Context, userID uuid.UUID, email, phone string, createdAfter time.Time) (int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)

	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id IS NULL").
		Where("created_at >= ?", createdAfter)

	switch {
	case email != "" && phone != "":
		q = q.Where("lower(email) = ? OR contact_phone = ?", email, phone)
	case email != "":
		q = q.Where("lower(email) = ?", email)
	case phone != "":
		q = q.Where("contact_phone = ?", phone)
	default:
		return 0, nil
	}

	res := q.Update("user_id", userID)
	return res.RowsAffected, res.Error
}

// ListByUser returns the user's orders, newest first, items included.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAll returns all orders for the admin view, newest first.
func (r *Repository) ListAll(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus writes the new fulfillment status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}
