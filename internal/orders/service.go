package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
)

// ReceiptActor identifies who is asking to see a receipt.
type ReceiptActor struct {
	UserID    *uuid.UUID
	SessionID string
}

// sessionReceipts reports which order number a guest session placed, so a
// guest can view their own receipt without an account.
type sessionReceipts interface {
	LastOrderNumber(ctx context.Context, sessionID string) (string, error)
}

// Service exposes order reads and the post-checkout mutations.
type Service interface {
	Receipt(ctx context.Context, actor ReceiptActor, orderNumber string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderNumber, reference string) (*models.Order, error)
	HistoryForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status enums.OrderStatus) (*models.Order, error)
	ClaimGuestOrders(ctx context.Context, userID uuid.UUID, email, phone string) (int64, error)
}

type service struct {
	repo        *Repository
	receipts    sessionReceipts
	claimWindow time.Duration
	logg        *logger.Logger
}

// NewService builds the orders service.
func NewService(repo *Repository, receipts sessionReceipts, claimWindow time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if receipts == nil {
		return nil, fmt.Errorf("session receipt store required")
	}
	if claimWindow <= 0 {
		return nil, fmt.Errorf("guest claim window must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, receipts: receipts, claimWindow: claimWindow, logg: logg}, nil
}

// Receipt loads the order when the caller owns it: the matching user, or the
// guest session that placed the order. Everything else is a plain not-found,
// so order numbers cannot be enumerated.
func (s *service) Receipt(ctx context.Context, actor ReceiptActor, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	if order.UserID != nil {
		if actor.UserID != nil && *actor.UserID == *order.UserID {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	if actor.SessionID != "" {
		placed, err := s.receipts.LastOrderNumber(ctx, actor.SessionID)
		if err != nil {
			s.logg.Warn(ctx, "checking session receipt failed")
		} else if placed == order.OrderNumber {
			return order, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// ConfirmPayment marks the order paid. Confirming an already-paid order is a
// no-op, not an error.
func (s *service) ConfirmPayment(ctx context.Context, orderNumber, reference string) (*models.Order, error) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	changed, err := s.repo.MarkPaid(ctx, order.ID, reference, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order paid")
	}
	if changed {
		s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "payment confirmed")
		return s.repo.FindByNumber(ctx, orderNumber)
	}
	return order, nil
}

func (s *service) HistoryForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return rows, nil
}

func (s *service) ListAll(ctx context.Context, limit, offset int) ([]models.Order, error) {
	rows, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return rows, nil
}

// UpdateStatus advances the fulfillment status one step forward.
func (s *service) UpdateStatus(ctx context.Context, orderID int64, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
	}

	if err := s.repo.UpdateStatus(ctx, orderID, string(status)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
	}
	order.Status = status
	return order, nil
}

// ClaimGuestOrders associates recent unowned orders with the user by contact
// match. This is a best-effort heuristic, not proof of ownership.
func (s *service) ClaimGuestOrders(ctx context.Context, userID uuid.UUID, email, phone string) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.claimWindow)
	claimed, err := s.repo.ClaimGuestOrders(ctx, userID, email, phone, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming guest orders")
	}
	if claimed > 0 {
		s.logg.Info(s.logg.WithField(ctx, "claimed", claimed), "guest orders claimed")
	}
	return claimed, nil
}
