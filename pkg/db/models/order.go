package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmartsg/freshmart-backend/pkg/enums"
)

// Order captures a completed checkout, guest or authenticated.
type Order struct {
	ID              int64                `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber     string               `gorm:"column:order_number;not null;uniqueIndex:idx_orders_order_number"`
	UserID          *uuid.UUID           `gorm:"column:user_id;type:uuid"`
	CustomerName    string               `gorm:"column:customer_name;not null;default:''"`
	Email           string               `gorm:"column:email;not null;default:''"`
	ContactPhone    string               `gorm:"column:contact_phone;not null;default:''"`
	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	DeliveryAddress string               `gorm:"column:delivery_address;not null;default:''"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	Paid            bool                 `gorm:"column:paid;not null;default:false"`
	PaidAt          *time.Time           `gorm:"column:paid_at"`
	PaymentRef      string               `gorm:"column:payment_reference;not null;default:''"`
	Subtotal        decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee     decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total           decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
