package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
)

// Actor identifies who owns the cart being operated on: an optional
// authenticated user plus the browser session carrying the ephemeral tier.
type Actor struct {
	UserID    *uuid.UUID
	SessionID string
}

type catalogReader interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

type sessionTier interface {
	Load(ctx context.Context, sessionID string) (Cart, map[int64]bool, error)
	Save(ctx context.Context, sessionID string, cart Cart, explicit map[int64]bool) error
	Owner(ctx context.Context, sessionID string) (*uuid.UUID, error)
	SetOwner(ctx context.Context, sessionID string, userID uuid.UUID) error
	Clear(ctx context.Context, sessionID string) error
}

type userTier interface {
	Load(ctx context.Context, userID uuid.UUID) (Cart, error)
	AddOne(ctx context.Context, userID uuid.UUID, productID int64) error
	Increase(ctx context.Context, userID uuid.UUID, productID int64) error
	Decrease(ctx context.Context, userID uuid.UUID, productID int64) error
	SetQuantity(ctx context.Context, userID uuid.UUID, productID int64, qty int, selected *bool) error
	Remove(ctx context.Context, userID uuid.UUID, productID int64) error
	Clear(ctx context.Context, userID uuid.UUID) error
	Replace(ctx context.Context, userID uuid.UUID, cart Cart) error
}

// Service keeps the two cart tiers consistent and produces priced snapshots.
//
// Tier ordering is fixed: the persisted tier is written first, so a
// persistence failure is observable before the session state advances.
type Service interface {
	AddOne(ctx context.Context, actor Actor, productID int64) error
	Increase(ctx context.Context, actor Actor, productID int64) error
	Decrease(ctx context.Context, actor Actor, productID int64) error
	SetQuantity(ctx context.Context, actor Actor, productID int64, qty int, selected *bool) error
	Remove(ctx context.Context, actor Actor, productID int64) error
	Clear(ctx context.Context, actor Actor) error
	Snapshot(ctx context.Context, actor Actor) (*Snapshot, error)
	MergeOnLogin(ctx context.Context, userID uuid.UUID, sessionID string) error
	PersistOnLogout(ctx context.Context, userID uuid.UUID, sessionID string) error
}

type service struct {
	catalog  catalogReader
	sessions sessionTier
	users    userTier
	logg     *logger.Logger
}

// NewService builds the cart service with both tiers and catalog access.
func NewService(catalog catalogReader, sessions sessionTier, users userTier, logg *logger.Logger) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session cart store required")
	}
	if users == nil {
		return nil, fmt.Errorf("user cart store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{catalog: catalog, sessions: sessions, users: users, logg: logg}, nil
}

func (s *service) AddOne(ctx context.Context, actor Actor, productID int64) error {
	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up product")
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	sessionCart, explicit, err := s.sessions.Load(ctx, actor.SessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart")
	}

	if product.Quantity < sessionCart[productID].Quantity+1 {
		return pkgerrors.New(pkgerrors.CodeConflict, "out of stock")
	}

	// persisted tier first: a failure here must leave the session untouched
	if actor.UserID != nil {
		if err := s.users.AddOne(ctx, *actor.UserID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating saved cart")
		}
	}

	entry := sessionCart[productID]
	entry.Quantity++
	entry.Selected = true
	sessionCart[productID] = entry
	explicit[productID] = true

	if err := s.sessions.Save(ctx, actor.SessionID, sessionCart, explicit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving cart")
	}
	return nil
}

func (s *service) Increase(ctx context.Context, actor Actor, productID int64) error {
	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up product")
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	sessionCart, explicit, err := s.sessions.Load(ctx, actor.SessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart")
	}

	if product.Quantity < sessionCart[productID].Quantity+1 {
		return pkgerrors.New(pkgerrors.CodeConflict, "out of stock")
	}

	if actor.UserID != nil {
		if err := s.users.Increase(ctx, *actor.UserID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating saved cart")
		}
	}

	entry, ok := sessionCart[productID]
	if !ok {
		entry = Entry{Selected: true}
		explicit[productID] = true
	}
	entry.Quantity++
	sessionCart[productID] = entry

	if err := s.sessions.Save(ctx, actor.SessionID, sessionCart, explicit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving cart")
	}
	return nil
}

func (s *service) Decrease(ctx context.Context, actor Actor, productID int64) error {
	sessionCart, explicit, err := s.sessions.Load(ctx, actor.SessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart")
	}

	if actor.UserID != nil {
		if err := s.users.Decrease(ctx, *actor.UserID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating saved cart")
		}
	}

	entry, ok := sessionCart[productID]
	if ok {
		entry.Quantity--
		if entry.Quantity <= 0 {
			delete(sessionCart, productID)
			delete(explicit, productID)
		} else {
			sessionCart[productID] = entry
		}
	}

	if err := s.sessions.Save(ctx, actor.SessionID, sessionCart, explicit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving cart")
	}
	return nil
}

func (s *service) SetQuantity(ctx context.Context, actor Actor, productID int64, qty int, selected *bool) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid quantity")
	}

	sessionCart, explicit, err := s.sessions.Load(ctx, actor.SessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart")
	}

	if actor.UserID != nil {
		if err := s.users.SetQuantity(ctx, *actor.UserID, productID, qty, selected); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating saved cart")
		}
	}

	if qty == 0 {
		delete(sessionCart, productID)
		delete(explicit, productID)
	} else {
		entry := sessionCart[productID]
		entry.Quantity = qty
		if selected != nil {
			entry.Selected = *selected
			explicit[productID] = true
		}
		sessionCart[productID] = entry
	}

	if err := s.sessions.Save(ctx, actor.SessionID, sessionCart, explicit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving cart")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, actor Actor, productID int64) error {
	sessionCart, explicit, err := s.sessions.Load(ctx, actor.SessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cart")
	}

	if actor.UserID != nil {
		if err := s.users.Remove(ctx, *actor.UserID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating saved cart")
		}
	}

	delete(sessionCart, productID)
	delete(explicit, productID)

	if err := s.sessions.Save(ctx, actor.SessionID, sessionCart, explicit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving cart")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, actor Actor) error {
	if actor.UserID != nil {
		if err := s.users.Clear(ctx, *actor.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing saved cart")
		}
	}
	// empty save, not Clear: the session keeps its owner marker so a later
	// login still recognizes the cart as this user's mirror
	if err := s.sessions.Save(ctx, actor.SessionID, Cart{}, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing cart")
	}
	return nil
}

// Snapshot builds the priced view of the session cart. Stale or zero-quantity
// entries are dropped from both tiers, and a catalog outage degrades to an
// empty snapshot rather than failing the caller.
func (s *service) Snapshot(ctx context.Context, actor Actor) (*Snapshot, error) {
	sessionCart, explicit, err := s.sessions.Load(ctx, actor.SessionID)
	if err != nil {
		s.logg.Error(ctx, "loading session cart for snapshot", err)
		return EmptySnapshot(), nil
	}
	if len(sessionCart) == 0 {
		return EmptySnapshot(), nil
	}

	ids := make([]int64, 0, len(sessionCart))
	for pid := range sessionCart {
		ids = append(ids, pid)
	}

	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		s.logg.Error(ctx, "catalog lookup failed, degrading snapshot", err)
		return EmptySnapshot(), nil
	}

	snapshot := EmptySnapshot()
	var stale []int64
	for pid, entry := range sessionCart {
		product, ok := products[pid]
		if !ok || entry.Quantity <= 0 {
			stale = append(stale, pid)
			continue
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(entry.Quantity)))
		snapshot.Items = append(snapshot.Items, SnapshotItem{
			ProductID: pid,
			Name:      product.Name,
			Category:  product.Category,
			ImageURL:  product.ImageURL,
			Price:     product.Price,
			Quantity:  entry.Quantity,
			Subtotal:  subtotal,
			Selected:  entry.Selected,
		})
		snapshot.Total = snapshot.Total.Add(subtotal)
		if entry.Selected {
			snapshot.SelectedTotal = snapshot.SelectedTotal.Add(subtotal)
		}
		snapshot.Count += entry.Quantity
	}

	sort.Slice(snapshot.Items, func(i, j int) bool {
		return snapshot.Items[i].ProductID < snapshot.Items[j].ProductID
	})

	if len(stale) > 0 {
		s.heal(ctx, actor, sessionCart, explicit, stale)
	}
	return snapshot, nil
}

// heal drops stale entries from both tiers, best effort.
func (s *service) heal(ctx context.Context, actor Actor, sessionCart Cart, explicit map[int64]bool, stale []int64) {
	for _, pid := range stale {
		delete(sessionCart, pid)
		delete(explicit, pid)
		if actor.UserID != nil {
			if err := s.users.Remove(ctx, *actor.UserID, pid); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "product_id", pid), "dropping stale saved cart entry failed")
			}
		}
	}
	if err := s.sessions.Save(ctx, actor.SessionID, sessionCart, explicit); err != nil {
		s.logg.Warn(ctx, "rewriting healed session cart failed")
	}
}

// MergeOnLogin combines the persisted and session carts, then rewrites both
// tiers with the merged result and stamps the session cart as owned by the
// logging-in user.
func (s *service) MergeOnLogin(ctx context.Context, userID uuid.UUID, sessionID string) error {
	persisted, err := s.users.Load(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading saved cart")
	}
	sessionCart, explicit, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading session cart")
	}
	owner, err := s.sessions.Owner(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading session cart owner")
	}

	// a session cart already owned by this user is the live mirror of the
	// persisted tier, so summing it against its own backing store would
	// double every line; take the mirror as authoritative instead
	var merged Cart
	if owner != nil && *owner == userID && len(sessionCart) > 0 {
		merged = sessionCart
	} else {
		merged = Merge(persisted, sessionCart, explicit)
	}

	if err := s.users.Replace(ctx, userID, merged); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rewriting saved cart")
	}

	// after merging every flag is settled, so mark them all explicit
	allExplicit := make(map[int64]bool, len(merged))
	for pid := range merged {
		allExplicit[pid] = true
	}
	if err := s.sessions.Save(ctx, sessionID, merged, allExplicit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rewriting session cart")
	}
	if err := s.sessions.SetOwner(ctx, sessionID, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking session cart owner")
	}
	return nil
}

// PersistOnLogout writes the session cart wholesale into the persisted tier,
// then discards the session tier so the next login starts from the saved
// cart alone.
func (s *service) PersistOnLogout(ctx context.Context, userID uuid.UUID, sessionID string) error {
	sessionCart, _, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading session cart")
	}
	if err := s.users.Replace(ctx, userID, sessionCart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting cart")
	}
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discarding session cart")
	}
	return nil
}
