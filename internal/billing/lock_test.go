package billing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, ttl time.Duration) (*ConversionLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewConversionLock(client, ttl), mr
}

func TestConversionLockAcquireRelease(t *testing.T) {
	lock, mr := newTestLock(t, time.Minute)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "q-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("billing:quotation:q-1:converting"))

	// Second claim on the same quotation is refused.
	_, err = lock.Acquire(ctx, "q-1")
	assert.ErrorIs(t, err, ErrConversionInProgress)

	// A different quotation is unaffected.
	otherRelease, err := lock.Acquire(ctx, "q-2")
	require.NoError(t, err)
	otherRelease()

	release()
	assert.False(t, mr.Exists("billing:quotation:q-1:converting"))

	// Released claim can be reacquired.
	release, err = lock.Acquire(ctx, "q-1")
	require.NoError(t, err)
	release()
}

func TestConversionLockExpiresAfterTTL(t *testing.T) {
	lock, mr := newTestLock(t, 10*time.Second)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "q-1")
	require.NoError(t, err)

	// Holder crashes without releasing; the claim lapses at TTL.
	mr.FastForward(11 * time.Second)

	release, err := lock.Acquire(ctx, "q-1")
	require.NoError(t, err)
	release()
}
