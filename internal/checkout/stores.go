package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	redisclient "github.com/freshmartsg/freshmart-backend/pkg/redis"
)

type checkoutKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type checkoutKeyer interface {
	CaptureProofKey(sessionID string) string
	ReceiptKey(sessionID string) string
}

// CaptureProof records a successful external gateway capture for the session.
// Its presence is what unblocks pay-now checkout.
type CaptureProof struct {
	Reference  string              `json:"reference"`
	Method     enums.PaymentMethod `json:"method"`
	CapturedAt time.Time           `json:"captured_at"`
}

// CaptureProofStore keeps capture proofs in Redis, scoped to the browser session.
type CaptureProofStore struct {
	kv    checkoutKV
	keyer checkoutKeyer
	ttl   time.Duration
}

// NewCaptureProofStore builds the Redis-backed proof store.
func NewCaptureProofStore(client *redisclient.Client, ttl time.Duration) (*CaptureProofStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("capture proof ttl must be positive")
	}
	return &CaptureProofStore{kv: client, keyer: client, ttl: ttl}, nil
}

// Record stores the proof for the session.
func (s *CaptureProofStore) Record(ctx context.Context, sessionID string, proof CaptureProof) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	payload, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("encoding capture proof: %w", err)
	}
	return s.kv.Set(ctx, s.keyer.CaptureProofKey(sessionID), payload, s.ttl)
}

// Get returns the session's proof, or nil when none was recorded.
func (s *CaptureProofStore) Get(ctx context.Context, sessionID string) (*CaptureProof, error) {
	if sessionID == "" {
		return nil, nil
	}
	raw, err := s.kv.Get(ctx, s.keyer.CaptureProofKey(sessionID))
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading capture proof: %w", err)
	}
	var proof CaptureProof
	if err := json.Unmarshal([]byte(raw), &proof); err != nil {
		return nil, fmt.Errorf("decoding capture proof: %w", err)
	}
	return &proof, nil
}

// Drop removes the proof once it has been consumed by a checkout.
func (s *CaptureProofStore) Drop(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.kv.Del(ctx, s.keyer.CaptureProofKey(sessionID))
}

// Receipt is the session-held copy of a checkout outcome. It is what a guest
// renders right after ordering, and it survives even when the durable write
// failed (Saved=false).
type Receipt struct {
	OrderNumber string    `json:"order_number"`
	Saved       bool      `json:"saved"`
	Warning     string    `json:"warning,omitempty"`
	PlacedAt    time.Time `json:"placed_at"`
}

// ReceiptStore keeps the session's latest receipt in Redis.
type ReceiptStore struct {
	kv    checkoutKV
	keyer checkoutKeyer
	ttl   time.Duration
}

// NewReceiptStore builds the Redis-backed receipt store.
func NewReceiptStore(client *redisclient.Client, ttl time.Duration) (*ReceiptStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("receipt ttl must be positive")
	}
	return &ReceiptStore{kv: client, keyer: client, ttl: ttl}, nil
}

// Save overwrites the session's receipt.
func (s *ReceiptStore) Save(ctx context.Context, sessionID string, receipt Receipt) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	return s.kv.Set(ctx, s.keyer.ReceiptKey(sessionID), payload, s.ttl)
}

// Get returns the session's receipt, or nil when none exists.
func (s *ReceiptStore) Get(ctx context.Context, sessionID string) (*Receipt, error) {
	if sessionID == "" {
		return nil, nil
	}
	raw, err := s.kv.Get(ctx, s.keyer.ReceiptKey(sessionID))
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading receipt: %w", err)
	}
	var receipt Receipt
	if err := json.Unmarshal([]byte(raw), &receipt); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	return &receipt, nil
}

// LastOrderNumber reports the order number this session last placed. It is
// how guest receipt access is authorized.
func (s *ReceiptStore) LastOrderNumber(ctx context.Context, sessionID string) (string, error) {
	receipt, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if receipt == nil {
		return "", nil
	}
	return receipt.OrderNumber, nil
}
