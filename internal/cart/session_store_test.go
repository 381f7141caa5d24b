package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string]string)}
}

func (m *mockKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockKV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return nil
}

func (m *mockKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (m *mockKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockKV) CartKey(sessionID string) string {
	return "fm:cart:session:" + sessionID
}

func (m *mockKV) CartOwnerKey(sessionID string) string {
	return "fm:cart:owner:" + sessionID
}

func newTestSessionStore() (*SessionStore, *mockKV) {
	kv := newMockKV()
	return &SessionStore{kv: kv, keyer: kv, ttl: time.Hour}, kv
}

func TestSessionStoreRoundTripPreservesExplicitSelection(t *testing.T) {
	store, _ := newTestSessionStore()
	ctx := context.Background()

	saved := Cart{
		1: {Quantity: 2, Selected: true},
		2: {Quantity: 4, Selected: false},
	}
	require.NoError(t, store.Save(ctx, "sid-1", saved, map[int64]bool{1: true}))

	loaded, explicit, err := store.Load(ctx, "sid-1")
	require.NoError(t, err)
	require.Equal(t, saved[1], loaded[1])
	require.Equal(t, 4, loaded[2].Quantity)
	require.True(t, explicit[1])
	require.False(t, explicit[2])
}

func TestSessionStoreMissingKeyIsEmptyCart(t *testing.T) {
	store, _ := newTestSessionStore()

	loaded, explicit, err := store.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	require.Empty(t, loaded)
	require.Empty(t, explicit)
}

func TestSessionStoreSaveEmptyCartDeletesKey(t *testing.T) {
	store, kv := newTestSessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-2", Cart{5: {Quantity: 1}}, nil))
	require.NotEmpty(t, kv.data)

	require.NoError(t, store.Save(ctx, "sid-2", Cart{}, nil))
	require.Empty(t, kv.data)
}

func TestSessionStoreSaveEmptyKeepsOwnerMarker(t *testing.T) {
	store, _ := newTestSessionStore()
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, store.SetOwner(ctx, "sid-6", userID))
	require.NoError(t, store.Save(ctx, "sid-6", Cart{1: {Quantity: 1}}, nil))

	require.NoError(t, store.Save(ctx, "sid-6", Cart{}, nil))

	owner, err := store.Owner(ctx, "sid-6")
	require.NoError(t, err)
	require.NotNil(t, owner)
	require.Equal(t, userID, *owner)
}

func TestSessionStoreOwnerLifecycle(t *testing.T) {
	store, kv := newTestSessionStore()
	ctx := context.Background()

	owner, err := store.Owner(ctx, "sid-4")
	require.NoError(t, err)
	require.Nil(t, owner)

	userID := uuid.New()
	require.NoError(t, store.SetOwner(ctx, "sid-4", userID))

	owner, err = store.Owner(ctx, "sid-4")
	require.NoError(t, err)
	require.NotNil(t, owner)
	require.Equal(t, userID, *owner)

	// clearing the cart retires the owner marker with it
	require.NoError(t, store.Clear(ctx, "sid-4"))
	owner, err = store.Owner(ctx, "sid-4")
	require.NoError(t, err)
	require.Nil(t, owner)

	// garbage in the marker reads as unowned
	kv.data[kv.CartOwnerKey("sid-5")] = "not-a-uuid"
	owner, err = store.Owner(ctx, "sid-5")
	require.NoError(t, err)
	require.Nil(t, owner)
}

func TestSessionStoreDropsZeroQuantityOnLoad(t *testing.T) {
	store, kv := newTestSessionStore()
	ctx := context.Background()

	kv.data[kv.CartKey("sid-3")] = `{"9":{"quantity":0,"selected":true},"10":{"quantity":2}}`

	loaded, _, err := store.Load(ctx, "sid-3")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, 2, loaded[10].Quantity)
}
