package checkout

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOrderNumber builds a human-readable order reference from the
// current timestamp plus a random suffix. Uniqueness is enforced by the
// storage layer's unique index; callers retry on collision.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", now.UnixMilli(), 100+rand.Intn(900))
}
