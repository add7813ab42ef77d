package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "car-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release(ctx)

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, km.Len(), "entries are dropped once nobody holds them")
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "car-a")
	require.NoError(t, err)
	defer releaseA(ctx)

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := km.Acquire(ctxB, "car-b")
	require.NoError(t, err)
	require.NoError(t, releaseB(ctx))
}

func TestKeyedMutex_BlocksUntilReleased(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, "car-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := km.Acquire(ctx, "car-1")
		if err == nil {
			close(acquired)
			r(ctx)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, release(ctx))

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, "car-1")
	require.NoError(t, err)
	defer release(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	_, err = km.Acquire(waitCtx, "car-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAcquired))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, km.Len())
}

func TestKeyedMutex_CancelledContextNeverAcquiresFreeKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 100; i++ {
		release, err := km.Acquire(ctx, "car-1")
		require.Error(t, err)
		assert.Nil(t, release)
		assert.True(t, errors.Is(err, ErrNotAcquired))
		assert.True(t, errors.Is(err, context.Canceled))
	}
	assert.Zero(t, km.Len())
}

func TestKeyedMutex_ReleaseIsIdempotent(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, "car-1")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := km.Acquire(ctx, "car-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
