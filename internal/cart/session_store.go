package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/freshmartsg/freshmart-backend/pkg/redis"
)

type cartKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type cartKeyer interface {
	CartKey(sessionID string) string
	CartOwnerKey(sessionID string) string
}

// sessionEntry is the wire shape of one cart line in Redis. Selected stays a
// pointer so the merge can tell "explicitly deselected" apart from "never set".
type sessionEntry struct {
	Quantity int   `json:"quantity"`
	Selected *bool `json:"selected,omitempty"`
}

// SessionStore keeps the ephemeral per-browser-session cart tier in Redis.
type SessionStore struct {
	kv    cartKV
	keyer cartKeyer
	ttl   time.Duration
}

// NewSessionStore builds the Redis-backed session cart tier.
func NewSessionStore(client *redisclient.Client, ttl time.Duration) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session cart ttl must be positive")
	}
	return &SessionStore{kv: client, keyer: client, ttl: ttl}, nil
}

// Load returns the session cart plus the set of products whose selected flag
// was explicitly written. A missing key is an empty cart, not an error.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (Cart, map[int64]bool, error) {
	if sessionID == "" {
		return Cart{}, map[int64]bool{}, nil
	}
	raw, err := s.kv.Get(ctx, s.keyer.CartKey(sessionID))
	if errors.Is(err, redislib.Nil) {
		return Cart{}, map[int64]bool{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading session cart: %w", err)
	}

	var wire map[string]sessionEntry
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, nil, fmt.Errorf("decoding session cart: %w", err)
	}

	loaded := make(Cart, len(wire))
	explicit := make(map[int64]bool, len(wire))
	for key, entry := range wire {
		pid, err := strconv.ParseInt(key, 10, 64)
		if err != nil || entry.Quantity <= 0 {
			continue
		}
		selected := false
		if entry.Selected != nil {
			selected = *entry.Selected
			explicit[pid] = true
		}
		loaded[pid] = Entry{Quantity: entry.Quantity, Selected: selected}
	}
	return loaded, explicit, nil
}

// Save rewrites the session cart wholesale, refreshing the TTL.
func (s *SessionStore) Save(ctx context.Context, sessionID string, cart Cart, explicit map[int64]bool) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	// an emptied cart drops only the cart key; the owner marker outlives it
	// so the session keeps its reconciliation state
	if len(cart) == 0 {
		if err := s.kv.Del(ctx, s.keyer.CartKey(sessionID)); err != nil {
			return fmt.Errorf("clearing session cart: %w", err)
		}
		return nil
	}

	wire := make(map[string]sessionEntry, len(cart))
	for pid, entry := range cart {
		if entry.Quantity <= 0 {
			continue
		}
		out := sessionEntry{Quantity: entry.Quantity}
		if explicit[pid] {
			selected := entry.Selected
			out.Selected = &selected
		}
		wire[strconv.FormatInt(pid, 10)] = out
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encoding session cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.keyer.CartKey(sessionID), payload, s.ttl); err != nil {
		return fmt.Errorf("saving session cart: %w", err)
	}
	// keep the owner marker's lifetime in step with the cart it describes
	if err := s.kv.Expire(ctx, s.keyer.CartOwnerKey(sessionID), s.ttl); err != nil {
		return fmt.Errorf("refreshing cart owner ttl: %w", err)
	}
	return nil
}

// Owner reports which user the session cart was last reconciled with, or nil
// when the cart has never been through a login.
func (s *SessionStore) Owner(ctx context.Context, sessionID string) (*uuid.UUID, error) {
	if sessionID == "" {
		return nil, nil
	}
	raw, err := s.kv.Get(ctx, s.keyer.CartOwnerKey(sessionID))
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cart owner: %w", err)
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		// a corrupt marker reads as unowned
		return nil, nil
	}
	return &owner, nil
}

// SetOwner marks the session cart as reconciled with the given user.
func (s *SessionStore) SetOwner(ctx context.Context, sessionID string, userID uuid.UUID) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := s.kv.Set(ctx, s.keyer.CartOwnerKey(sessionID), userID.String(), s.ttl); err != nil {
		return fmt.Errorf("saving cart owner: %w", err)
	}
	return nil
}

// Clear drops the session cart and its owner marker entirely.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.kv.Del(ctx, s.keyer.CartKey(sessionID), s.keyer.CartOwnerKey(sessionID)); err != nil {
		return fmt.Errorf("clearing session cart: %w", err)
	}
	return nil
}
