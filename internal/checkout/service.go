package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshmartsg/freshmart-backend/internal/cart"
	"github.com/freshmartsg/freshmart-backend/internal/catalog"
	"github.com/freshmartsg/freshmart-backend/internal/orders"
	"github.com/freshmartsg/freshmart-backend/pkg/db"
	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
	"github.com/freshmartsg/freshmart-backend/pkg/metrics"
)

const contactPhoneDigits = 8

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartAccess interface {
	Snapshot(ctx context.Context, actor cart.Actor) (*cart.Snapshot, error)
	Clear(ctx context.Context, actor cart.Actor) error
}

type proofAccess interface {
	Get(ctx context.Context, sessionID string) (*CaptureProof, error)
	Drop(ctx context.Context, sessionID string) error
}

type receiptSink interface {
	Save(ctx context.Context, sessionID string, receipt Receipt) error
}

// Input carries the delivery/payment details supplied at checkout.
type Input struct {
	DeliveryMethod  enums.DeliveryMethod
	DeliveryFee     decimal.Decimal
	PaymentMethod   enums.PaymentMethod
	CustomerName    string
	CustomerEmail   string
	ShippingPhone   string
	DeliveryAddress string
}

// Result is the outcome of one checkout attempt. Saved=false means the order
// could not be written durably but the session still holds a receipt.
type Result struct {
	Order   *models.Order
	Saved   bool
	Warning string
}

// Service turns a priced cart snapshot into a durable order.
type Service interface {
	Execute(ctx context.Context, actor cart.Actor, input Input) (*Result, error)
}

type service struct {
	carts    cartAccess
	catalog  *catalog.Repository
	orders   *orders.Repository
	tx       txRunner
	proofs   proofAccess
	receipts receiptSink
	fees     map[string]decimal.Decimal
	retries  int
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the checkout engine.
func NewService(
	carts cartAccess,
	catalogRepo *catalog.Repository,
	ordersRepo *orders.Repository,
	tx txRunner,
	proofs proofAccess,
	receipts receiptSink,
	fees map[string]decimal.Decimal,
	retries int,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if proofs == nil {
		return nil, fmt.Errorf("capture proof store required")
	}
	if receipts == nil {
		return nil, fmt.Errorf("receipt store required")
	}
	if len(fees) == 0 {
		return nil, fmt.Errorf("delivery fee schedule required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retries <= 0 {
		retries = 3
	}
	return &service{
		carts:    carts,
		catalog:  catalogRepo,
		orders:   ordersRepo,
		tx:       tx,
		proofs:   proofs,
		receipts: receipts,
		fees:     fees,
		retries:  retries,
		metrics:  checkoutMetrics,
		logg:     logg,
	}, nil
}

// NormalizePhone strips every non-digit character and keeps the trailing
// digits, so numbers entered with a country prefix still validate. The
// second return reports whether the result is a full local number.
func NormalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()
	if len(normalized) < contactPhoneDigits {
		return "", false
	}
	return normalized[len(normalized)-contactPhoneDigits:], true
}

func (s *service) Execute(ctx context.Context, actor cart.Actor, input Input) (*Result, error) {
	start := time.Now()
	method := string(input.PaymentMethod)

	order, err := s.execute(ctx, actor, input)
	if err != nil {
		s.metrics.IncRejected(method)
		return nil, err
	}

	s.metrics.ObserveDuration(method, time.Since(start))

	if order.Saved {
		s.metrics.IncCompleted(method)
	} else {
		s.metrics.IncFailed(method)
	}
	return order, nil
}

func (s *service) execute(ctx context.Context, actor cart.Actor, input Input) (*Result, error) {
	if !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	snapshot, err := s.carts.Snapshot(ctx, actor)
	if err != nil {
		return nil, err
	}
	items := snapshot.SelectedItems()
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var phone string
	if input.DeliveryMethod.RequiresContactPhone() {
		normalized, ok := NormalizePhone(input.ShippingPhone)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("contact phone must contain %d digits", contactPhoneDigits))
		}
		phone = normalized
	}

	// the fee schedule is authoritative: a client-supplied fee that does not
	// match it is rejected, never trusted
	expectedFee, ok := s.fees[string(input.DeliveryMethod)]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if !input.DeliveryFee.Equal(expectedFee) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee does not match the fee schedule")
	}

	var proof *CaptureProof
	if input.PaymentMethod.RequiresCaptureProof() {
		proof, err = s.proofs.Get(ctx, actor.SessionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking payment capture")
		}
		if proof == nil {
			return nil, pkgerrors.New(pkgerrors.CodePayment, "payment not completed")
		}
	}

	subtotal := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
		orderItems = append(orderItems, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			UnitPrice:   item.Price,
			Quantity:    item.Quantity,
			LineTotal:   item.Subtotal,
		})
	}

	now := time.Now().UTC()
	order := &models.Order{
		UserID:          actor.UserID,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		Email:           strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		ContactPhone:    phone,
		DeliveryMethod:  input.DeliveryMethod,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		PaymentMethod:   input.PaymentMethod,
		Status:          enums.OrderStatusPending,
		Subtotal:        subtotal,
		DeliveryFee:     expectedFee,
		Total:           subtotal.Add(expectedFee),
	}
	if proof != nil {
		order.Paid = true
		order.PaidAt = &now
		order.PaymentRef = proof.Reference
	}

	if err := s.persist(ctx, order, orderItems); err != nil {
		if coded := pkgerrors.As(err); coded != nil {
			return nil, err
		}
		return s.degrade(ctx, actor, order, err), nil
	}

	s.finalize(ctx, actor, order)
	return &Result{Order: order, Saved: true}, nil
}

// persist writes the order, its items, and the stock decrements in one
// transaction, retrying with a fresh order number on a uniqueness collision.
func (s *service) persist(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		order.ID = 0
		order.OrderNumber = GenerateOrderNumber(time.Now())
		order.Items = make([]models.OrderItem, len(items))
		copy(order.Items, items)

		lastErr = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			stock := s.catalog.WithTx(tx)
			for _, item := range order.Items {
				decremented, err := stock.DecrementStock(ctx, item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				if !decremented {
					return pkgerrors.New(pkgerrors.CodeConflict,
						fmt.Sprintf("insufficient stock for %s", item.ProductName))
				}
			}
			return nil
		})
		if lastErr == nil {
			return nil
		}
		if db.IsUniqueViolation(lastErr, "order_number") {
			continue
		}
		return lastErr
	}
	return lastErr
}

// degrade is the persistence-failure path: the order was not saved durably,
// but the session keeps a flagged receipt so the customer does not lose their
// confirmation. The cart is deliberately left intact.
func (s *service) degrade(ctx context.Context, actor cart.Actor, order *models.Order, cause error) *Result {
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	ctx = s.logg.WithSessionID(ctx, actor.SessionID)
	s.logg.Error(ctx, "order persistence failed, serving session-only receipt", cause)

	const warning = "order placed but not saved, please contact support"
	receipt := Receipt{
		OrderNumber: order.OrderNumber,
		Saved:       false,
		Warning:     warning,
		PlacedAt:    time.Now().UTC(),
	}
	if err := s.receipts.Save(ctx, actor.SessionID, receipt); err != nil {
		s.logg.Error(ctx, "saving degraded receipt failed", err)
	}
	return &Result{Order: order, Saved: false, Warning: warning}
}

// finalize clears both cart tiers, consumes the capture proof, and stashes
// the receipt. All best effort: the order already exists.
func (s *service) finalize(ctx context.Context, actor cart.Actor, order *models.Order) {
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	ctx = s.logg.WithSessionID(ctx, actor.SessionID)

	if err := s.carts.Clear(ctx, actor); err != nil {
		s.logg.Warn(ctx, "clearing cart after checkout failed")
	}
	if order.Paid {
		if err := s.proofs.Drop(ctx, actor.SessionID); err != nil {
			s.logg.Warn(ctx, "dropping consumed capture proof failed")
		}
	}
	receipt := Receipt{
		OrderNumber: order.OrderNumber,
		Saved:       true,
		PlacedAt:    time.Now().UTC(),
	}
	if err := s.receipts.Save(ctx, actor.SessionID, receipt); err != nil {
		s.logg.Warn(ctx, "saving receipt failed")
	}

	s.logg.Info(ctx, "order placed")
}
