package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConversionLock claims a quotation in Redis for the duration of a
// conversion, narrowing the race window between the engine's two
// dependent writes. It is advisory: the store's conditional status
// update remains the hard guard.
type ConversionLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewConversionLock constructs a lock with the given claim TTL. The TTL
// bounds how long a crashed conversion can hold the claim.
func NewConversionLock(client *redis.Client, ttl time.Duration) *ConversionLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ConversionLock{client: client, ttl: ttl}
}

func conversionClaimKey(quotationID string) string {
	return fmt.Sprintf("billing:quotation:%s:converting", quotationID)
}

// Acquire claims the quotation. It fails with ErrConversionInProgress
// when another conversion already holds the claim.
func (l *ConversionLock) Acquire(ctx context.Context, quotationID string) (func(), error) {
	key := conversionClaimKey(quotationID)
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire conversion claim: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: quotation %s", ErrConversionInProgress, quotationID)
	}
	release := func() {
		// Release on a fresh context so cancellation of the conversion
		// does not leak the claim until TTL.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.client.Del(releaseCtx, key)
	}
	return release, nil
}
